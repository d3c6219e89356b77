// Package weights provides the hierarchical "prefix.suffix" tensor-name
// resolver used to materialize a vocoder.WeightTable from a safetensors
// file, handing back raw float32 slices (plus declared shape) for every
// layer kind the vocoder needs: dense/conv weight matrices, sparse
// block-recurrent GRU tensors, embedding tables, and normalization stats.
package weights

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ishine/mwdlp-go/internal/safetensors"
)

// VarBuilder resolves "prefix.suffix" tensor names against a safetensors
// store.
type VarBuilder struct {
	store  *safetensors.Store
	prefix string
}

func Open(path string, opts safetensors.StoreOptions) (*VarBuilder, error) {
	store, err := safetensors.OpenStore(path, opts)
	if err != nil {
		return nil, err
	}

	return &VarBuilder{store: store}, nil
}

func New(store *safetensors.Store) *VarBuilder {
	return &VarBuilder{store: store}
}

func (vb *VarBuilder) Store() *safetensors.Store {
	if vb == nil {
		return nil
	}

	return vb.store
}

func (vb *VarBuilder) Path(parts ...string) *VarBuilder {
	if vb == nil {
		return nil
	}

	prefix := vb.prefix

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if prefix == "" {
			prefix = part
		} else {
			prefix += "." + part
		}
	}

	return &VarBuilder{store: vb.store, prefix: prefix}
}

func (vb *VarBuilder) Has(name string) bool {
	if vb == nil || vb.store == nil {
		return false
	}

	return vb.store.Has(vb.resolve(name))
}

// Raw resolves name to a flat float32 slice plus its declared shape, for
// hot-path layers (GRU/Dense/Conv1D weight matrices, sparse recurrent
// blocks) that want direct []float32 access without a tensor.Tensor wrapper.
func (vb *VarBuilder) Raw(name string, wantShape ...int64) ([]float32, []int64, error) {
	if vb == nil || vb.store == nil {
		return nil, nil, errors.New("weights varbuilder: uninitialized store")
	}

	fullName := vb.resolve(name)

	st, err := vb.store.Tensor(fullName)
	if err != nil {
		return nil, nil, err
	}

	if len(wantShape) > 0 && !equalShape(st.Shape, wantShape) {
		return nil, nil, fmt.Errorf("weights varbuilder: tensor %q shape %v does not match expected %v", fullName, st.Shape, wantShape)
	}

	return st.Data, st.Shape, nil
}

// RawMaybe is Raw, but returns ok=false instead of an error when the tensor
// is absent (optional layers: converter-only branches, DLPC correction
// state when disabled at export time).
func (vb *VarBuilder) RawMaybe(name string, wantShape ...int64) (data []float32, shape []int64, ok bool, err error) {
	if !vb.Has(name) {
		return nil, nil, false, nil
	}

	data, shape, err = vb.Raw(name, wantShape...)
	return data, shape, err == nil, err
}

// Ints resolves name to a []int, used for sparse block-row-index tensors
// exported as float32 but semantically integral.
func (vb *VarBuilder) Ints(name string, wantLen int) ([]int, error) {
	data, _, err := vb.Raw(name)
	if err != nil {
		return nil, err
	}

	if wantLen > 0 && len(data) != wantLen {
		return nil, fmt.Errorf("weights varbuilder: tensor %q has %d entries, want %d", vb.resolve(name), len(data), wantLen)
	}

	out := make([]int, len(data))
	for i, v := range data {
		out[i] = int(v)
	}

	return out, nil
}

// Meta reads a string stored in the file's __metadata__ block under the
// current prefix joined with key (e.g. "gru_spk.act" for prefix "gru_spk",
// key "act"). Used for activation tags and other side information that does
// not fit the tensor-only safetensors data model.
func (vb *VarBuilder) Meta(key string) (string, bool) {
	if vb == nil || vb.store == nil {
		return "", false
	}

	return vb.store.Metadata(vb.resolve(key))
}

// MetaOr is Meta with a fallback default.
func (vb *VarBuilder) MetaOr(key, def string) string {
	v, ok := vb.Meta(key)
	if !ok {
		return def
	}

	return v
}

func (vb *VarBuilder) resolve(name string) string {
	name = strings.TrimSpace(name)
	if vb == nil || vb.prefix == "" {
		return name
	}

	if name == "" {
		return vb.prefix
	}

	return vb.prefix + "." + name
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
