package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
)

// On-disk layout, little endian:
//
//	magic "WAVI" | version u16 | dim u32 | count u32
//	count x (content, title, category, source) as u32 length + bytes
//	count x dim x f32
//	crc32 (IEEE) of everything above
const (
	indexFileName = "index.bin"
	formatVersion = 1
	maxStringLen  = 1 << 24
)

var indexMagic = [4]byte{'W', 'A', 'V', 'I'}

var ErrCorruptIndex = errors.New("vectorindex: corrupt index file")

func IndexFile(dir string) string {
	return filepath.Join(dir, indexFileName)
}

// Save writes the index to dir/index.bin through a temp file and rename so a
// reader never sees a partial file.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, indexFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(tmp, crc))
	if err := ix.encode(bw); err != nil {
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
	return os.Rename(tmp.Name(), IndexFile(dir))
}

func (ix *Index) encode(w io.Writer) error {
	le := binary.LittleEndian
	if _, err := w.Write(indexMagic[:]); err != nil {
		return err
	}
	for _, v := range []any{uint16(formatVersion), uint32(ix.dim), uint32(len(ix.chunks))} {
		if err := binary.Write(w, le, v); err != nil {
			return err
		}
	}
	for _, c := range ix.chunks {
		for _, s := range []string{c.Content, c.Metadata.Title, c.Metadata.Category, c.Metadata.Source} {
			if err := binary.Write(w, le, uint32(len(s))); err != nil {
				return err
			}
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
	}
	buf := make([]byte, 4*ix.dim)
	for _, v := range ix.vectors {
		for i, x := range v {
			le.PutUint32(buf[4*i:], math.Float32bits(x))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Load reads dir/index.bin. A missing file returns an error wrapping
// os.ErrNotExist; any structural problem wraps ErrCorruptIndex.
func Load(dir string) (*Index, error) {
	raw, err := os.ReadFile(IndexFile(dir))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4+2+4+4+4 {
		return nil, fmt.Errorf("%w: file too short", ErrCorruptIndex)
	}
	body, tail := raw[:len(raw)-4], raw[len(raw)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}
	return decode(body)
}

func decode(body []byte) (*Index, error) {
	r := &reader{buf: body}
	var magic [4]byte
	copy(magic[:], r.next(4))
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	if v := r.u16(); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	dim := int(r.u32())
	count := int(r.u32())
	if r.err != nil || dim == 0 || count == 0 {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptIndex)
	}

	chunks := make([]Chunk, count)
	for i := range chunks {
		fields := make([]string, 4)
		for f := range fields {
			n := int(r.u32())
			if n > maxStringLen {
				return nil, fmt.Errorf("%w: string too long", ErrCorruptIndex)
			}
			fields[f] = string(r.next(n))
		}
		chunks[i] = Chunk{
			Content:  fields[0],
			Metadata: Metadata{Title: fields[1], Category: fields[2], Source: fields[3]},
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: truncated chunks", ErrCorruptIndex)
	}
	if len(body)-r.off != count*dim*4 {
		return nil, fmt.Errorf("%w: vector block size", ErrCorruptIndex)
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(r.u32())
		}
		vectors[i] = v
	}
	return New(chunks, vectors)
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

func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.next(2)) }
func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.next(4)) }
