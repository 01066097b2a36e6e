package secrets

import "github.com/prometheus/client_golang/prometheus"

func VaultFallbacks() *prometheus.CounterVec {
	return vaultFallbacks
}
