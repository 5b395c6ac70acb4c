package bloomchain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/bloomchain/storage"
)

// Export file framing. The payload (metadata record plus all sub-filters,
// length-prefixed) is zstd-compressed; the header carries the uncompressed
// length and a CRC32-IEEE of the uncompressed payload. CRC32 detects
// accidental corruption only; it is not tamper-proof.
const (
	exportMagic   = 0x42434831 // "BCH1"
	exportVersion = 1

	exportHeaderSize = 4 + 4 + 8 + 4
)

var (
	// ErrBadExport indicates an export stream that cannot be decoded.
	ErrBadExport = errors.New("malformed chain export")

	// ErrExportChecksum indicates a payload failing CRC verification.
	ErrExportChecksum = errors.New("chain export checksum mismatch")
)

// Dump writes a portable snapshot of the chain under key to w. Metadata and
// all sub-filters are read under one engine snapshot, so the dump is
// internally consistent even while concurrent adds commit. A missing chain
// returns ErrNotFound.
func (bc *BloomChain) Dump(ctx context.Context, key []byte, w io.Writer) error {
	nsKey := storage.NamespacedKey(bc.namespace, key)

	snapshot, err := bc.engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer snapshot.Release()

	raw, err := snapshot.Get(storage.MetadataCF, nsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	metadata := &ChainMetadata{}
	if err := metadata.UnmarshalBinary(raw); err != nil {
		return err
	}

	filterKeys := storage.SubFilterKeys(nsKey, metadata.Version, metadata.NFilters)
	filterData, err := readFilters(snapshot, filterKeys)
	if err != nil {
		return err
	}

	payload := encodeExportPayload(raw, filterData)

	var header [exportHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], exportMagic)
	binary.LittleEndian.PutUint32(header[4:], exportVersion)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[16:], crc32.ChecksumIEEE(payload))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := zw.Write(payload); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Restore recreates a chain from a Dump stream under key. It fails with
// ErrChainExists when the key already holds a chain. The restored chain gets
// a fresh version epoch so its sub-filter records cannot alias leftovers of
// an earlier incarnation; everything lands in one atomic batch tagged
// restoreBloomChain.
func (bc *BloomChain) Restore(ctx context.Context, key []byte, r io.Reader) error {
	var header [exportHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrBadExport, err)
	}
	if binary.LittleEndian.Uint32(header[0:]) != exportMagic {
		return fmt.Errorf("%w: bad magic", ErrBadExport)
	}
	if binary.LittleEndian.Uint32(header[4:]) != exportVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadExport, binary.LittleEndian.Uint32(header[4:]))
	}
	payloadLen := binary.LittleEndian.Uint64(header[8:])
	wantCRC := binary.LittleEndian.Uint32(header[16:])
	if payloadLen > math.MaxInt64-1 {
		return fmt.Errorf("%w: declared payload length %d", ErrBadExport, payloadLen)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	// One byte past the declared length exposes an oversized stream without
	// letting the decompressed data grow beyond the header's claim.
	payload, err := io.ReadAll(io.LimitReader(zr, int64(payloadLen)+1))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadExport, err)
	}
	if uint64(len(payload)) != payloadLen {
		return fmt.Errorf("%w: payload length mismatch", ErrBadExport)
	}
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return ErrExportChecksum
	}

	raw, filterData, err := decodeExportPayload(payload)
	if err != nil {
		return err
	}

	metadata := &ChainMetadata{}
	if err := metadata.UnmarshalBinary(raw); err != nil {
		return err
	}
	if int(metadata.NFilters) != len(filterData) {
		return fmt.Errorf("%w: %d filters for nFilters=%d", ErrBadExport, len(filterData), metadata.NFilters)
	}

	nsKey := storage.NamespacedKey(bc.namespace, key)

	unlock := bc.locks.Lock(nsKey)
	defer unlock()

	_, err = bc.loadMetadata(ctx, nsKey)
	switch {
	case err == nil:
		return ErrChainExists
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	metadata.Version = newChainVersion()
	encoded, err := metadata.MarshalBinary()
	if err != nil {
		return err
	}

	batch := storage.NewBatch()
	batch.SetLogData(storage.RecordBloomChain, "restoreBloomChain")
	batch.Put(storage.MetadataCF, nsKey, encoded)
	for i, data := range filterData {
		batch.Put(storage.DataCF, storage.SubFilterKey(nsKey, metadata.Version, uint16(i)), data)
	}
	return bc.engine.Commit(ctx, batch)
}

func encodeExportPayload(rawMetadata []byte, filterData [][]byte) []byte {
	size := binary.MaxVarintLen64 * (2 + len(filterData))
	size += len(rawMetadata)
	for _, f := range filterData {
		size += len(f)
	}

	payload := make([]byte, 0, size)
	payload = binary.AppendUvarint(payload, uint64(len(rawMetadata)))
	payload = append(payload, rawMetadata...)
	payload = binary.AppendUvarint(payload, uint64(len(filterData)))
	for _, f := range filterData {
		payload = binary.AppendUvarint(payload, uint64(len(f)))
		payload = append(payload, f...)
	}
	return payload
}

func decodeExportPayload(payload []byte) (rawMetadata []byte, filterData [][]byte, err error) {
	next := func() ([]byte, error) {
		n, read := binary.Uvarint(payload)
		if read <= 0 || uint64(len(payload[read:])) < n {
			return nil, fmt.Errorf("%w: truncated section", ErrBadExport)
		}
		section := payload[read : read+int(n)]
		payload = payload[read+int(n):]
		return section, nil
	}

	rawMetadata, err = next()
	if err != nil {
		return nil, nil, err
	}

	count, read := binary.Uvarint(payload)
	if read <= 0 {
		return nil, nil, fmt.Errorf("%w: truncated filter count", ErrBadExport)
	}
	payload = payload[read:]

	// Every filter costs at least its one-byte length prefix, so a count
	// beyond the remaining payload is malformed. Checked before allocating.
	if count > uint64(len(payload)) {
		return nil, nil, fmt.Errorf("%w: filter count %d exceeds payload", ErrBadExport, count)
	}

	filterData = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		f, err := next()
		if err != nil {
			return nil, nil, err
		}
		filterData = append(filterData, f)
	}
	return rawMetadata, filterData, nil
}
