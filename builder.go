package phonedata

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	pderrors "github.com/phonedata/phonedata/errors"
)

// contextCheckInterval is how often Add checks for context cancellation.
const contextCheckInterval = 10000

// Builder assembles a database file from (prefix, region, carrier) triples.
//
// Identical regions are stored once and shared by every prefix that uses
// them. Entries may be added in any order; they are sorted on output.
//
// Usage:
//
//	b, err := phonedata.NewBuilder(ctx, "phone.dat", "v001")
//	if err != nil { return err }
//	defer b.Close()
//
//	for _, row := range rows {
//	    if err := b.Add(row.Prefix, row.Region, row.Carrier); err != nil { return err }
//	}
//	return b.Finish()
type Builder struct {
	ctx     context.Context
	output  string
	version [versionSize]byte

	entries     []builderEntry
	regions     []Region
	regionIndex map[Region]int32
	prefixes    map[int32]struct{}
	recordBytes int

	closed bool
}

type builderEntry struct {
	prefix  int32
	region  int32
	carrier Carrier
}

// NewBuilder creates a builder that writes to output on Finish.
// version must be exactly 4 printable ASCII bytes, e.g. "v001".
// output may be empty when only Encode is used.
func NewBuilder(ctx context.Context, output, version string) (*Builder, error) {
	if len(version) != versionSize {
		return nil, fmt.Errorf("%w: %q", pderrors.ErrInvalidVersion, version)
	}
	for i := 0; i < len(version); i++ {
		if version[i] < 0x20 || version[i] > 0x7e {
			return nil, fmt.Errorf("%w: %q", pderrors.ErrInvalidVersion, version)
		}
	}

	b := &Builder{
		ctx:         ctx,
		output:      output,
		regionIndex: make(map[Region]int32),
		prefixes:    make(map[int32]struct{}),
	}
	copy(b.version[:], version)
	return b, nil
}

// Add records that prefix (the decimal value of a 7 digit number prefix)
// maps to region with carrier c.
func (b *Builder) Add(prefix int32, region Region, c Carrier) error {
	if b.closed {
		return pderrors.ErrBuilderClosed
	}
	if len(b.entries)%contextCheckInterval == 0 {
		if err := b.ctx.Err(); err != nil {
			return err
		}
	}

	if prefix < minPrefix || prefix > maxPrefix {
		return fmt.Errorf("%w: %d", pderrors.ErrInvalidPrefix, prefix)
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %d", pderrors.ErrInvalidCarrierCode, uint8(c))
	}
	if err := region.validate(); err != nil {
		return err
	}
	if _, dup := b.prefixes[prefix]; dup {
		return fmt.Errorf("%w: %07d", pderrors.ErrDuplicatePrefix, prefix)
	}

	idx, ok := b.regionIndex[region]
	if !ok {
		idx = int32(len(b.regions))
		b.regions = append(b.regions, region)
		b.regionIndex[region] = idx
		b.recordBytes += len(region.encode()) + 1
	}
	b.prefixes[prefix] = struct{}{}
	b.entries = append(b.entries, builderEntry{prefix: prefix, region: idx, carrier: c})
	return nil
}

// AddNumber is Add with the prefix taken from the first 7 digits of number.
func (b *Builder) AddNumber(number string, region Region, c Carrier) error {
	prefix, err := parsePrefix(number)
	if err != nil {
		return fmt.Errorf("%w: %w", pderrors.ErrInvalidPrefix, err)
	}
	return b.Add(prefix, region, c)
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int { return len(b.entries) }

// size returns the encoded file size.
func (b *Builder) size() (int, error) {
	indexOffset := headerSize + b.recordBytes
	if indexOffset > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d bytes", pderrors.ErrDatabaseTooLarge, indexOffset)
	}
	return indexOffset + len(b.entries)*indexEntrySize, nil
}

// encodeTo writes the complete file image into buf, which must be exactly
// size() bytes.
func (b *Builder) encodeTo(buf []byte) {
	offsets := make([]int32, len(b.regions))
	pos := headerSize
	for i, r := range b.regions {
		offsets[i] = int32(pos)
		pos += copy(buf[pos:], r.encode())
		buf[pos] = recordTerminator
		pos++
	}

	h := header{Version: b.version, IndexOffset: uint32(pos)}
	h.encodeTo(buf[:headerSize])

	slices.SortFunc(b.entries, func(x, y builderEntry) int {
		return cmp.Compare(x.prefix, y.prefix)
	})
	for _, e := range b.entries {
		encodeIndexEntryTo(indexEntry{
			Prefix:       e.prefix,
			RecordOffset: offsets[e.region],
			Carrier:      e.carrier,
		}, buf[pos:pos+indexEntrySize])
		pos += indexEntrySize
	}
}

// Encode returns the database image without writing it. The builder stays
// open.
func (b *Builder) Encode() ([]byte, error) {
	if b.closed {
		return nil, pderrors.ErrBuilderClosed
	}
	if len(b.entries) == 0 {
		return nil, pderrors.ErrEmptyDatabase
	}
	size, err := b.size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	b.encodeTo(buf)
	return buf, nil
}

// Finish writes the database to the output path.
// The file appears atomically: it is written to a temporary sibling and
// renamed on success. After Finish the builder cannot be used again.
func (b *Builder) Finish() error {
	if b.closed {
		return pderrors.ErrBuilderClosed
	}
	b.closed = true

	if len(b.entries) == 0 {
		return pderrors.ErrEmptyDatabase
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}
	size, err := b.size()
	if err != nil {
		return err
	}

	w, err := newFileWriter(b.output, size)
	if err != nil {
		return err
	}
	b.encodeTo(w.data())
	return w.commit()
}

// Close discards the builder. Nothing is written unless Finish succeeded.
// Safe to call after Finish.
func (b *Builder) Close() error {
	b.closed = true
	b.entries = nil
	b.regions = nil
	b.regionIndex = nil
	b.prefixes = nil
	return nil
}
