package custody

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

func (e *Engine) loadMetrics() (*AggregateMetrics, error) {
	m := new(AggregateMetrics)
	if _, err := e.st.KVGet(metricsKey(), m); err != nil {
		return nil, err
	}
	m.normalize()
	return m, nil
}

func (e *Engine) storeMetrics(m *AggregateMetrics) error {
	return e.st.KVPut(metricsKey(), m)
}

func (e *Engine) trackSubmitted(mat *Material) error {
	m, err := e.loadMetrics()
	if err != nil {
		return err
	}
	weight, carry := bits.Add64(m.TotalWeight, mat.Weight, 0)
	if carry != 0 {
		return fmt.Errorf("%w: total weight", ErrOverflow)
	}
	m.TotalMaterials++
	m.TotalWeight = weight
	return e.storeMetrics(m)
}

func (e *Engine) trackDeactivated(mat *Material) error {
	m, err := e.loadMetrics()
	if err != nil {
		return err
	}
	if m.TotalMaterials == 0 || m.TotalWeight < mat.Weight {
		return fmt.Errorf("custody: aggregate metrics underflow deactivating material %d", mat.ID)
	}
	m.TotalMaterials--
	m.TotalWeight -= mat.Weight
	return e.storeMetrics(m)
}

func (e *Engine) trackRewarded(points uint64) error {
	m, err := e.loadMetrics()
	if err != nil {
		return err
	}
	if _, overflow := m.TotalTokens.AddOverflow(m.TotalTokens, uint256.NewInt(points)); overflow {
		return fmt.Errorf("%w: total tokens", ErrOverflow)
	}
	return e.storeMetrics(m)
}

// Metrics returns the incrementally maintained aggregate totals.
func (e *Engine) Metrics() (AggregateMetrics, error) {
	m, err := e.loadMetrics()
	if err != nil {
		return AggregateMetrics{}, err
	}
	return *m, nil
}

// RecomputeMetrics folds over every stored material. It scans the whole
// ledger and exists for audits; calls never use it.
func (e *Engine) RecomputeMetrics() (AggregateMetrics, error) {
	counters, err := e.loadCounters()
	if err != nil {
		return AggregateMetrics{}, err
	}
	out := AggregateMetrics{TotalTokens: new(uint256.Int)}
	for id := uint64(1); id <= counters.LastMaterialID; id++ {
		m := new(Material)
		ok, err := e.st.KVGet(materialKey(id), m)
		if err != nil {
			return AggregateMetrics{}, err
		}
		if !ok {
			continue
		}
		if m.Active {
			out.TotalMaterials++
			out.TotalWeight += m.Weight
		}
		if m.Verified {
			out.TotalTokens.Add(out.TotalTokens, uint256.NewInt(m.RewardPoints))
		}
	}
	return out, nil
}
