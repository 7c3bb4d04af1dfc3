package bandit

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

// On-disk layout, little endian:
//
//	magic "LUCB" | version u16 | dim u32 | arms u32
//	per arm: name (u32 length + bytes) | A (dim*dim f64, row major) | b (dim f64) | selections u64
//	crc32 (IEEE) of everything above
const formatVersion = 1

var stateMagic = [4]byte{'L', 'U', 'C', 'B'}

// save writes every arm, substituting override for armIdx, through a
// synced temp file renamed over the target. Caller holds persistMu.
func (b *Bandit) save(armIdx int, override *armState) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(tmp, crc))
	if err := b.encode(bw, armIdx, override); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := binary.Write(tmp, binary.LittleEndian, crc.Sum32()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *Bandit) encode(w io.Writer, armIdx int, override *armState) error {
	le := binary.LittleEndian
	if _, err := w.Write(stateMagic[:]); err != nil {
		return err
	}
	for _, v := range []any{uint16(formatVersion), uint32(b.dim), uint32(len(b.arms))} {
		if err := binary.Write(w, le, v); err != nil {
			return err
		}
	}
	buf := make([]byte, 8)
	putF := func(v float64) error {
		le.PutUint64(buf, math.Float64bits(v))
		_, err := w.Write(buf)
		return err
	}
	for i, a := range b.arms {
		st := a.state.Load()
		if i == armIdx && override != nil {
			st = override
		}
		if err := binary.Write(w, le, uint32(len(a.name))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, a.name); err != nil {
			return err
		}
		for r := 0; r < b.dim; r++ {
			for c := 0; c < b.dim; c++ {
				if err := putF(st.a.At(r, c)); err != nil {
					return err
				}
			}
		}
		for r := 0; r < b.dim; r++ {
			if err := putF(st.b.AtVec(r)); err != nil {
				return err
			}
		}
		if err := binary.Write(w, le, uint64(a.selections.Load())); err != nil {
			return err
		}
	}
	return nil
}

// load replaces the fresh arms with the persisted ones. Missing files wrap
// os.ErrNotExist, anything unreadable wraps ErrCorruptState.
func (b *Bandit) load() error {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return err
	}
	if len(raw) < 4+2+4+4+4 {
		return fmt.Errorf("%w: file too short", ErrCorruptState)
	}
	body, tail := raw[:len(raw)-4], raw[len(raw)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptState)
	}

	r := &reader{buf: body}
	var magic [4]byte
	copy(magic[:], r.next(4))
	if magic != stateMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptState)
	}
	if v := r.u16(); v != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptState, v)
	}
	dim, n := int(r.u32()), int(r.u32())
	if r.err != nil || dim != b.dim || n != len(b.arms) {
		return fmt.Errorf("%w: shape %dx%d does not match %dx%d", ErrCorruptState, n, dim, len(b.arms), b.dim)
	}

	states := make([]*armState, n)
	selections := make([]int64, n)
	for i := 0; i < n; i++ {
		nameLen := int(r.u32())
		if nameLen > 256 {
			return fmt.Errorf("%w: arm name too long", ErrCorruptState)
		}
		name := string(r.next(nameLen))
		if r.err == nil && name != b.arms[i].name {
			return fmt.Errorf("%w: arm %d is %q, want %q", ErrCorruptState, i, name, b.arms[i].name)
		}
		aData := make([]float64, dim*dim)
		for k := range aData {
			aData[k] = r.f64()
		}
		bData := make([]float64, dim)
		for k := range bData {
			bData[k] = r.f64()
		}
		selections[i] = int64(r.u64())
		if r.err != nil {
			return fmt.Errorf("%w: truncated arm %d", ErrCorruptState, i)
		}
		for row := 0; row < dim; row++ {
			for col := row + 1; col < dim; col++ {
				if aData[row*dim+col] != aData[col*dim+row] {
					return fmt.Errorf("%w: arm %s design matrix not symmetric", ErrCorruptState, name)
				}
			}
		}
		st, err := newArmState(mat.NewSymDense(dim, aData), mat.NewVecDense(dim, bData))
		if err != nil {
			return fmt.Errorf("%w: arm %s: %v", ErrCorruptState, name, err)
		}
		states[i] = st
	}
	if r.off != len(body) {
		return fmt.Errorf("%w: trailing bytes", ErrCorruptState)
	}

	for i, a := range b.arms {
		a.state.Store(states[i])
		a.selections.Store(selections[i])
	}
	return nil
}

func quarantine(path string) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return make([]byte, max(n, 0))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16  { return binary.LittleEndian.Uint16(r.next(2)) }
func (r *reader) u32() uint32  { return binary.LittleEndian.Uint32(r.next(4)) }
func (r *reader) u64() uint64  { return binary.LittleEndian.Uint64(r.next(8)) }
func (r *reader) f64() float64 { return math.Float64frombits(r.u64()) }
