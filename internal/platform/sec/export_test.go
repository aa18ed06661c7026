// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "time"

// SetNow swaps the token service clock for deterministic expiry tests.
func SetNow(service *TokenService, now func() time.Time) {
	service.now = now
}
