// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
)

// Unchanged reports whether a fully trusted definition matches the one recorded by the
// prior reconciliation, ignoring the trust marker itself. Neither input is modified.
func Unchanged(def Definition, prev *PreviousState) (bool, error) {
	if def.TrustLevel() != TrustFull {
		return false, nil
	}
	if prev == nil || prev.RenderedDefinition == nil {
		return false, nil
	}
	want, err := def.Without(FieldTrustLevel).CanonicalJSON()
	if err != nil {
		return false, err
	}
	got, err := prev.RenderedDefinition.Without(FieldTrustLevel).CanonicalJSON()
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}
