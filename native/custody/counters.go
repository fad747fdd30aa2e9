package custody

import "math"

func (e *Engine) loadCounters() (Counters, error) {
	var c Counters
	if _, err := e.st.KVGet(countersKey(), &c); err != nil {
		return Counters{}, err
	}
	return c, nil
}

// Counters returns the last identifiers issued.
func (e *Engine) Counters() (Counters, error) {
	return e.loadCounters()
}

// AllocateMaterialID reserves the next material identifier. Identifiers start
// at 1 and are never reused.
func (e *Engine) AllocateMaterialID() (uint64, error) {
	c, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	if c.LastMaterialID == math.MaxUint64 {
		return 0, ErrCounterOverflow
	}
	c.LastMaterialID++
	if err := e.st.KVPut(countersKey(), c); err != nil {
		return 0, err
	}
	return c.LastMaterialID, nil
}

// AllocateIncentiveID reserves the next incentive identifier.
func (e *Engine) AllocateIncentiveID() (uint64, error) {
	c, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	if c.LastIncentiveID == math.MaxUint64 {
		return 0, ErrCounterOverflow
	}
	c.LastIncentiveID++
	if err := e.st.KVPut(countersKey(), c); err != nil {
		return 0, err
	}
	return c.LastIncentiveID, nil
}
