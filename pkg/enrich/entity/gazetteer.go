package entity

import "regexp"

type term struct {
	Text      string
	Canonical string
}

// Gazetteers are scanned in declaration order so entity lists come out in a
// stable order.
var (
	stocks = []term{
		{"AAPL", "Apple Inc."}, {"MSFT", "Microsoft"}, {"GOOGL", "Alphabet"},
		{"AMZN", "Amazon"}, {"TSLA", "Tesla"}, {"NVDA", "NVIDIA"}, {"META", "Meta"},
		{"BRK.B", "Berkshire Hathaway"}, {"JPM", "JPMorgan"}, {"V", "Visa"},
		{"JNJ", "Johnson & Johnson"}, {"WMT", "Walmart"}, {"PG", "Procter & Gamble"},
		{"RELIANCE", "Reliance Industries"}, {"TCS", "Tata Consultancy Services"},
		{"INFY", "Infosys"}, {"HDFCBANK", "HDFC Bank"},
	}

	// Upper-case symbols match as whole words in the original casing, the
	// lower-case names match case-insensitively.
	crypto = []term{
		{"BTC", "Bitcoin"}, {"ETH", "Ethereum"}, {"BNB", "Binance Coin"},
		{"ADA", "Cardano"}, {"SOL", "Solana"}, {"XRP", "Ripple"}, {"DOGE", "Dogecoin"},
		{"DOT", "Polkadot"}, {"AVAX", "Avalanche"}, {"MATIC", "Polygon"},
		{"bitcoin", "Bitcoin"}, {"ethereum", "Ethereum"}, {"crypto", ""},
		{"cryptocurrency", ""}, {"defi", "DeFi"},
	}

	taxTerms = []term{
		{"W-2", "Wage and Tax Statement"},
		{"W2", "Wage and Tax Statement"},
		{"1099", "Miscellaneous Income"},
		{"1099-NEC", "Nonemployee Compensation"},
		{"1040", "US Individual Income Tax Return"},
		{"Schedule C", "Profit or Loss from Business"},
		{"Schedule D", "Capital Gains and Losses"},
		{"capital gains", ""},
		{"capital loss", ""},
		{"standard deduction", ""},
		{"itemized deduction", ""},
		{"AMT", "Alternative Minimum Tax"},
		{"MAGI", "Modified Adjusted Gross Income"},
		{"AGI", "Adjusted Gross Income"},
		{"tax bracket", ""},
		{"tax credit", ""},
		{"earned income credit", ""},
		{"FICA", "Federal Insurance Contributions Act"},
		{"80C", "Section 80C deduction"},
		{"80D", "Section 80D health insurance deduction"},
		{"87A", "Section 87A rebate"},
		{"TDS", "Tax Deducted at Source"},
		{"GST", "Goods and Services Tax"},
		{"ITR", "Income Tax Return"},
		{"STCG", "Short-term capital gains"},
		{"LTCG", "Long-term capital gains"},
		{"HRA", "House Rent Allowance"},
		{"advance tax", ""},
		{"new regime", ""},
		{"old regime", ""},
	}

	accounts = []term{
		{"401k", "401(k)"}, {"401(k)", "401(k)"}, {"403b", "403(b)"},
		{"roth ira", "Roth IRA"}, {"traditional ira", "Traditional IRA"},
		{"ira", "IRA"}, {"hsa", "Health Savings Account"},
		{"fsa", "Flexible Spending Account"}, {"529", "529 Education Plan"},
		{"brokerage", ""}, {"taxable account", ""}, {"sep ira", "SEP-IRA"},
		{"simple ira", "SIMPLE IRA"}, {"pension", ""},
		{"ppf", "Public Provident Fund"}, {"epf", "Employees' Provident Fund"},
		{"nps", "National Pension System"}, {"demat", "Demat account"},
		{"fixed deposit", ""},
	}

	funds = []term{
		{"VTSAX", "Vanguard Total Stock Market Index Fund"},
		{"VFIAX", "Vanguard 500 Index Fund"},
		{"VTI", "Vanguard Total Stock Market ETF"},
		{"VOO", "Vanguard S&P 500 ETF"},
		{"SPY", "SPDR S&P 500 ETF"},
		{"QQQ", "Invesco QQQ ETF"},
		{"BND", "Vanguard Total Bond Market ETF"},
		{"VXUS", "Vanguard Total International Stock ETF"},
		{"FSKAX", "Fidelity Total Market Index Fund"},
		{"FXAIX", "Fidelity 500 Index Fund"},
		{"S&P 500", ""},
		{"s&p500", ""},
		{"total market", ""},
		{"index fund", ""},
		{"etf", ""},
		{"mutual fund", ""},
		{"elss", "Equity Linked Savings Scheme"},
		{"nifty 50", ""},
		{"sip", "Systematic Investment Plan"},
	}
)

var (
	amountRe = regexp.MustCompile(`(?i)` +
		`\$[\d,]+(?:\.\d{1,2})?\s*/\s*(?:month|year|week)` +
		`|\$\s*[\d,]+(?:\.\d{1,2})?[kmb]?` +
		`|(?:₹|rs\.?|inr)\s*[\d,]+(?:\.\d{1,2})?(?:\s*(?:lakh|crore|cr))?` +
		`|[\d,]+(?:\.\d{1,2})?\s*(?:dollars?|usd|rupees?|lakhs?|crores?)` +
		`|\d+(?:\.\d+)?\s*%`)

	timeRe = regexp.MustCompile(`(?i)` +
		`april\s+15` +
		`|(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?` +
		`|q[1-4]\s*\d{4}` +
		`|(?:fy|fiscal\s+year)\s*\d{4}(?:-\d{2})?` +
		`|\b\d{4}\b` +
		`|this\s+(?:year|month|quarter)` +
		`|next\s+(?:year|month|quarter)` +
		`|\d+\s+(?:year|month|week|day)s?`)
)
