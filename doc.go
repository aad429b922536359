// Package phonedata resolves the leading digits of a phone number to its
// province, city, postal code, area code and carrier using a compact,
// read-only binary database.
//
// # Basic Usage
//
// Querying a database:
//
//	db, err := phonedata.Open("phone.dat", phonedata.WithStrategy(phonedata.StrategyBloom))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rec, err := db.Find("18086834111")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rec.Province, rec.City, rec.Carrier)
//
// Building a database:
//
//	b, err := phonedata.NewBuilder(ctx, "phone.dat", "v001")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//	region := phonedata.Region{Province: "Guangdong", City: "Shenzhen", ZipCode: "518000", AreaCode: "0755"}
//	if err := b.Add(1808683, region, phonedata.CarrierMobile); err != nil {
//	    log.Fatal(err)
//	}
//	if err := b.Finish(); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Format
//
//	offset 0..4    ASCII version, e.g. "v001"
//	offset 4..8    uint32_le offset of the index region
//	offset 8..N    records: NUL-terminated "province|city|zipcode|areacode"
//	offset N..EOF  9-byte index entries: int32_le prefix,
//	               int32_le absolute record offset, uint8 carrier
//
// # Package Structure
//
//   - Public API: database.go (Open, Find, FindBatch, Stats), builder.go (NewBuilder, Add, Finish)
//   - Configuration: options.go (Option, With* functions)
//   - Serialization: header.go (header, indexEntry), record.go (record decoding), index_writer.go
//   - Strategy dispatch: strategy.go (lookupStrategy interface, factory)
//   - Strategies: sorted.go, hashtable.go, bloom.go (backed by internal/bloom)
//   - Result cache: cache.go
//   - Platform: fadvise_*.go, madvise_*.go, fallocate_*.go (OS-specific hints)
package phonedata
