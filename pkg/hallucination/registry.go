package hallucination

// RegistryVersion identifies the rule set the facts below were taken from.
const RegistryVersion = "FY2024-25 (Budget 2024)"

const (
	CategoryRegime       = "regime"
	CategoryCapitalGains = "capital_gains"
	CategoryTDS          = "tds"
	CategoryGST          = "gst"
	CategoryPayroll      = "payroll"
	CategoryAdvanceTax   = "advance_tax"
)

// Fact is one authoritative rate or amount. A fact with triggers is only
// checked when one of them appears in the answer.
type Fact struct {
	Key             string
	Description     string
	Category        string
	Triggers        []string
	ExpectedRates   []string
	WrongRates      []string
	ExpectedAmounts []string
	WrongAmounts    []string
	ExpectedLimits  []string
}

var registry = []Fact{
	{
		Key:           "new_regime_slab_3l_5l",
		Description:   "New regime: ₹3–7 lakh → 5%",
		Category:      CategoryRegime,
		ExpectedRates: []string{"5%"},
		Triggers:      []string{"3 lakh to 7", "3-7 lakh", "3l to 7l", "5% slab"},
	},
	{
		Key:           "new_regime_slab_above_15l",
		Description:   "New regime: above ₹15 lakh → 30%",
		Category:      CategoryRegime,
		ExpectedRates: []string{"30%"},
		Triggers:      []string{"above 15 lakh", "above ₹15", "above rs 15"},
	},
	{
		Key:             "87a_rebate_new_regime",
		Description:     "Sec 87A rebate new regime: ₹25,000 if income ≤ ₹7 lakh",
		Category:        CategoryRegime,
		ExpectedAmounts: []string{"25000", "25,000"},
		ExpectedLimits:  []string{"7 lakh", "₹7"},
	},
	{
		Key:             "87a_rebate_old_regime",
		Description:     "Sec 87A rebate old regime: ₹12,500 if income ≤ ₹5 lakh",
		Category:        CategoryRegime,
		ExpectedAmounts: []string{"12500", "12,500"},
		ExpectedLimits:  []string{"5 lakh", "₹5"},
	},
	{
		Key:           "stcg_111a_rate",
		Description:   "STCG u/s 111A on equity: 20% (from 23 July 2024)",
		Category:      CategoryCapitalGains,
		ExpectedRates: []string{"20%"},
		WrongRates:    []string{"15%"},
		Triggers:      []string{"stcg", "short term capital gain", "section 111a", "111a"},
	},
	{
		Key:           "ltcg_112a_rate",
		Description:   "LTCG u/s 112A on equity: 12.5% (from 23 July 2024)",
		Category:      CategoryCapitalGains,
		ExpectedRates: []string{"12.5%"},
		WrongRates:    []string{"10%"},
		Triggers:      []string{"ltcg", "long term capital gain", "section 112a", "112a"},
	},
	{
		Key:             "ltcg_112a_exemption",
		Description:     "LTCG 112A exemption: ₹1.25 lakh (was ₹1 lakh before Budget 2024)",
		Category:        CategoryCapitalGains,
		ExpectedAmounts: []string{"1.25 lakh", "1,25,000", "125000"},
		WrongAmounts:    []string{"1 lakh", "100000", "1,00,000"},
		Triggers:        []string{"ltcg exemption", "exempt ltcg", "112a exempt"},
	},
	{
		Key:           "tds_194c_individual",
		Description:   "TDS 194C individual/HUF contractor: 1%",
		Category:      CategoryTDS,
		ExpectedRates: []string{"1%"},
		Triggers:      []string{"194c", "contractor tds", "section 194c individual"},
	},
	{
		Key:           "tds_194c_company",
		Description:   "TDS 194C company contractor: 2%",
		Category:      CategoryTDS,
		ExpectedRates: []string{"2%"},
		Triggers:      []string{"194c company", "contractor tds company"},
	},
	{
		Key:            "tds_194ia",
		Description:    "TDS 194IA on property sale: 1% if > ₹50 lakh",
		Category:       CategoryTDS,
		ExpectedRates:  []string{"1%"},
		ExpectedLimits: []string{"50 lakh", "₹50"},
		Triggers:       []string{"194ia", "property tds", "immovable property tds"},
	},
	{
		Key:           "tds_194j_professional",
		Description:   "TDS 194J professional services: 10%",
		Category:      CategoryTDS,
		ExpectedRates: []string{"10%"},
		Triggers:      []string{"194j professional", "professional fee tds"},
	},
	{
		Key:           "tds_194j_technical",
		Description:   "TDS 194J technical services: 2%",
		Category:      CategoryTDS,
		ExpectedRates: []string{"2%"},
		Triggers:      []string{"194j technical", "technical service tds"},
	},
	{
		Key:           "gst_gold",
		Description:   "GST on gold: 3%; making charges: 5%",
		Category:      CategoryGST,
		ExpectedRates: []string{"3%"},
		Triggers:      []string{"gold gst", "gst on gold", "gst jewellery"},
	},
	{
		Key:           "gst_making_charges",
		Description:   "GST on making charges (gold): 5%",
		Category:      CategoryGST,
		ExpectedRates: []string{"5%"},
		Triggers:      []string{"making charges gst", "gst making"},
	},
	{
		Key:           "gst_restaurant_ac",
		Description:   "GST on restaurant in AC premises: 5% (no ITC)",
		Category:      CategoryGST,
		ExpectedRates: []string{"5%"},
		Triggers:      []string{"restaurant gst", "gst restaurant ac"},
	},
	{
		Key:           "epf_employee",
		Description:   "EPF employee contribution: 12% of basic",
		Category:      CategoryPayroll,
		ExpectedRates: []string{"12%"},
		Triggers:      []string{"epf employee", "pf employee", "provident fund contribution"},
	},
	{
		Key:           "esic_employee",
		Description:   "ESIC employee contribution: 0.75% of gross",
		Category:      CategoryPayroll,
		ExpectedRates: []string{"0.75%"},
		Triggers:      []string{"esic employee", "esi employee contribution"},
	},
	{
		Key:           "esic_employer",
		Description:   "ESIC employer contribution: 3.25% of gross",
		Category:      CategoryPayroll,
		ExpectedRates: []string{"3.25%"},
		Triggers:      []string{"esic employer", "esi employer contribution"},
	},
	{
		Key:           "advance_tax_jun",
		Description:   "Advance tax June installment: 15% of estimated liability",
		Category:      CategoryAdvanceTax,
		ExpectedRates: []string{"15%"},
		Triggers:      []string{"june advance tax", "15 june installment", "advance tax june"},
	},
	{
		Key:           "advance_tax_sep",
		Description:   "Advance tax September installment: 45% cumulative",
		Category:      CategoryAdvanceTax,
		ExpectedRates: []string{"45%"},
		Triggers:      []string{"september advance tax", "15 september", "advance tax sep"},
	},
	{
		Key:           "advance_tax_dec",
		Description:   "Advance tax December installment: 75% cumulative",
		Category:      CategoryAdvanceTax,
		ExpectedRates: []string{"75%"},
		Triggers:      []string{"december advance tax", "15 december", "advance tax dec"},
	},
	{
		Key:           "advance_tax_mar",
		Description:   "Advance tax March installment: 100% cumulative",
		Category:      CategoryAdvanceTax,
		ExpectedRates: []string{"100%"},
		Triggers:      []string{"march advance tax", "15 march", "advance tax march"},
	},
}

// Registry returns a copy of the built-in fact table.
func Registry() []Fact {
	return append([]Fact(nil), registry...)
}
