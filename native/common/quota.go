package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaWeightExceeded   = errors.New("quota submitted weight exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount   uint32
	WeightUsed uint64
	EpochID    uint64
}

// Quota defines the limits enforced per address and epoch: the number of
// mutating calls and the grams of material submitted.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxWeightPerEpoch   uint64
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp to the quota epoch it falls into.
func (q Quota) Epoch(now int64) uint64 {
	if now <= 0 {
		return 0
	}
	seconds := q.EpochSeconds
	if seconds == 0 {
		seconds = 60
	}
	return uint64(now) / uint64(seconds)
}

// CheckQuota verifies whether the additional request and weight fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addWeight uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addWeight > 0 {
		if next.WeightUsed > math.MaxUint64-addWeight {
			return prev, ErrQuotaCounterOverflow
		}
		next.WeightUsed += addWeight
	}
	if q.MaxWeightPerEpoch > 0 && next.WeightUsed > q.MaxWeightPerEpoch {
		return prev, ErrQuotaWeightExceeded
	}

	return next, nil
}
