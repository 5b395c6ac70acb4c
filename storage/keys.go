package storage

import "encoding/binary"

// Key layout. The namespace key is uvarint-length-prefixed so that derived
// keys stay injective no matter what suffix follows; sub-filter keys append
// the chain version epoch and the filter index big-endian, so enumerating
// indexes 0..n-1 walks the sub-filters in append order.

// NamespacedKey prefixes a user key with its namespace. A nil or empty
// namespace yields a key in the default namespace.
func NamespacedKey(namespace, key []byte) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(namespace)+len(key))
	buf = binary.AppendUvarint(buf, uint64(len(namespace)))
	buf = append(buf, namespace...)
	buf = append(buf, key...)
	return buf
}

// SubFilterKey derives the DataCF key for one sub-filter of a chain.
//
// version is the chain's creation epoch; it keeps records of a re-created
// chain disjoint from stale records of an earlier incarnation under the same
// namespace key. index 0 is the oldest sub-filter.
func SubFilterKey(nsKey []byte, version uint64, index uint16) []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+len(nsKey)+10)
	buf = binary.AppendUvarint(buf, uint64(len(nsKey)))
	buf = append(buf, nsKey...)
	buf = binary.BigEndian.AppendUint64(buf, version)
	buf = binary.BigEndian.AppendUint16(buf, index)
	return buf
}

// SubFilterKeys enumerates the ordered key list for the first n sub-filters.
func SubFilterKeys(nsKey []byte, version uint64, n uint16) [][]byte {
	keys := make([][]byte, 0, n)
	for i := uint16(0); i < n; i++ {
		keys = append(keys, SubFilterKey(nsKey, version, i))
	}
	return keys
}
