package phonedata

import (
	"unsafe"

	"golang.org/x/sync/errgroup"

	pderrors "github.com/phonedata/phonedata/errors"
)

// hashSlot is one map value: the index of the decoded region plus the raw
// carrier byte, which is resolved at lookup time like the other strategies.
type hashSlot struct {
	region  int32
	carrier Carrier
}

// hashTable eagerly decodes every record into a prefix-keyed map.
//
// Records shared by several prefixes are decoded once and referenced by
// index. The records blob is not retained after construction.
type hashTable struct {
	table       map[int32]hashSlot
	regions     []Region
	stringBytes int
}

// newHashTable decodes all distinct records referenced by the index,
// spreading the work over workers goroutines. Any undecodable record fails
// construction.
func newHashTable(raw *rawDatabase, workers int) (*hashTable, error) {
	slotOf := make(map[int32]int32, len(raw.entries)/4+1)
	var offsets []int32
	for _, e := range raw.entries {
		if _, ok := slotOf[e.RecordOffset]; !ok {
			slotOf[e.RecordOffset] = int32(len(offsets))
			offsets = append(offsets, e.RecordOffset)
		}
	}

	regions := make([]Region, len(offsets))
	workers = max(1, workers)
	chunk := max(1, (len(offsets)+workers-1)/workers)

	var g errgroup.Group
	for start := 0; start < len(offsets); start += chunk {
		end := min(start+chunk, len(offsets))
		g.Go(func() error {
			for i := start; i < end; i++ {
				r, err := decodeRecord(raw.records, offsets[i])
				if err != nil {
					return err
				}
				regions[i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := &hashTable{
		table:   make(map[int32]hashSlot, len(raw.entries)),
		regions: regions,
	}
	for _, r := range regions {
		h.stringBytes += len(r.Province) + len(r.City) + len(r.ZipCode) + len(r.AreaCode)
	}
	for _, e := range raw.entries {
		h.table[e.Prefix] = hashSlot{region: slotOf[e.RecordOffset], carrier: e.Carrier}
	}
	return h, nil
}

func (h *hashTable) lookup(prefix int32, tr *LookupTrace) (PhoneRecord, error) {
	slot, ok := h.table[prefix]
	if tr != nil {
		tr.Found = ok
	}
	if !ok {
		return PhoneRecord{}, pderrors.ErrNotFound
	}
	return newPhoneRecord(h.regions[slot.region], slot.carrier)
}

// memoryUsage approximates the map as key plus value per entry; bucket
// overhead is not counted.
func (h *hashTable) memoryUsage() int {
	perEntry := int(unsafe.Sizeof(int32(0)) + unsafe.Sizeof(hashSlot{}))
	return len(h.table)*perEntry +
		len(h.regions)*int(unsafe.Sizeof(Region{})) +
		h.stringBytes
}

func (h *hashTable) fillStats(s *Stats) {
	s.UniqueRecords = len(h.regions)
}
