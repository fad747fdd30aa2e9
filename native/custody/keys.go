package custody

import "encoding/binary"

var (
	participantPrefix       = []byte("custody/participant/")
	materialPrefix          = []byte("custody/material/")
	transferPrefix          = []byte("custody/transfer/")
	holdingsPrefix          = []byte("custody/holdings/")
	originatedPrefix        = []byte("custody/originated/")
	incentivePrefix         = []byte("custody/incentive/")
	incentiveSponsorPrefix  = []byte("custody/incentive-sponsor/")
	incentiveCategoryPrefix = []byte("custody/incentive-category/")
	countersKeyBytes        = []byte("custody/counters")
	distributionKeyBytes    = []byte("custody/config/distribution")
	metricsKeyBytes         = []byte("custody/metrics")
	charityKeyBytes         = []byte("custody/charity")
)

func addrKey(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])
	return key
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func participantKey(addr [20]byte) []byte { return addrKey(participantPrefix, addr) }

func materialKey(id uint64) []byte { return idKey(materialPrefix, id) }

func transferKey(id uint64, seq uint64) []byte {
	key := make([]byte, len(transferPrefix)+16)
	copy(key, transferPrefix)
	binary.BigEndian.PutUint64(key[len(transferPrefix):], id)
	binary.BigEndian.PutUint64(key[len(transferPrefix)+8:], seq)
	return key
}

func holdingsKey(addr [20]byte) []byte { return addrKey(holdingsPrefix, addr) }

func originatedKey(addr [20]byte) []byte { return addrKey(originatedPrefix, addr) }

func incentiveKey(id uint64) []byte { return idKey(incentivePrefix, id) }

func incentiveSponsorKey(addr [20]byte) []byte { return addrKey(incentiveSponsorPrefix, addr) }

func incentiveCategoryKey(c Category) []byte {
	key := make([]byte, len(incentiveCategoryPrefix)+1)
	copy(key, incentiveCategoryPrefix)
	key[len(incentiveCategoryPrefix)] = byte(c)
	return key
}

func countersKey() []byte { return append([]byte(nil), countersKeyBytes...) }

func distributionKey() []byte { return append([]byte(nil), distributionKeyBytes...) }

func metricsKey() []byte { return append([]byte(nil), metricsKeyBytes...) }

func charityKey() []byte { return append([]byte(nil), charityKeyBytes...) }

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeIDs(raw [][]byte) []uint64 {
	out := make([]uint64, 0, len(raw))
	for _, b := range raw {
		if len(b) != 8 {
			continue
		}
		out = append(out, binary.BigEndian.Uint64(b))
	}
	return out
}
