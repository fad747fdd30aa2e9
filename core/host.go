package core

import (
	"fmt"

	"scavenger/crypto"
	nativecommon "scavenger/native/common"
	"scavenger/native/custody"
)

var (
	noncePrefix = []byte("host/nonce/")
	quotaPrefix = []byte("host/quota/")
)

func hostKey(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])
	return key
}

func formatAddr(addr [20]byte) string { return crypto.FormatAddress(addr) }

// signerAuthorizer lets the engine act only for the signer of the call being
// executed.
type signerAuthorizer struct {
	signer [20]byte
	active bool
}

func (a *signerAuthorizer) set(signer [20]byte) {
	a.signer = signer
	a.active = true
}

func (a *signerAuthorizer) clear() {
	a.signer = [20]byte{}
	a.active = false
}

// Authorize implements custody.Authorizer.
func (a *signerAuthorizer) Authorize(principal [20]byte) error {
	if !a.active {
		return fmt.Errorf("%w: no signed call in progress", custody.ErrUnauthorized)
	}
	if principal != a.signer {
		return fmt.Errorf("%w: %s cannot act for %s", custody.ErrUnauthorized, formatAddr(a.signer), formatAddr(principal))
	}
	return nil
}

func (r *Runtime) nonce(addr [20]byte) (uint64, error) {
	var n uint64
	if _, err := r.manager.KVGet(hostKey(noncePrefix, addr), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Runtime) setNonce(addr [20]byte, n uint64) error {
	return r.manager.KVPut(hostKey(noncePrefix, addr), n)
}

// chargeQuota adds requests and submitted grams to addr's usage in the current
// epoch.
func (r *Runtime) chargeQuota(addr [20]byte, requests uint32, weight uint64) error {
	if r.quota.MaxRequestsPerEpoch == 0 && r.quota.MaxWeightPerEpoch == 0 {
		return nil
	}
	key := hostKey(quotaPrefix, addr)
	var prev nativecommon.QuotaNow
	if _, err := r.manager.KVGet(key, &prev); err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(r.quota, r.quota.Epoch(r.now().Unix()), prev, requests, weight)
	if err != nil {
		return err
	}
	return r.manager.KVPut(key, next)
}

// callContext is handed to method handlers.
type callContext struct {
	rt     *Runtime
	sender [20]byte
}

func (c *callContext) engine() *custody.Engine { return c.rt.engine }

// chargeWeight counts submitted grams against the signer's quota.
func (c *callContext) chargeWeight(grams uint64) error {
	return c.rt.chargeQuota(c.sender, 0, grams)
}
