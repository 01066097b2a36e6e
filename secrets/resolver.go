package secrets

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/prometheusbp"
)

const promNamespace = "secrets"

var vaultFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: promNamespace,
	Name:      "vault_fallback_total",
	Help:      "Total number of secret resolutions that fell back to local secrets only",
}, []string{prometheusbp.ReasonLabel})

// Status describes where the resolved secrets came from.
type Status int

// Status values.
const (
	// StatusVault means the vault payload was used, overlaid on local secrets.
	StatusVault Status = iota
	// StatusLocalOnly means no vault key was configured.
	StatusLocalOnly
	// StatusDegraded means a vault key was configured but its payload could
	// not be used, Result.Reason tells why.
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusVault:
		return "vault"
	case StatusLocalOnly:
		return "local-only"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result is the outcome of Resolve.
type Result struct {
	// UserName is the vault payload's UserName when it's non-empty,
	// the local one otherwise.
	UserName string

	// Set is the merged secret set.
	Set Set

	Status Status

	// Reason is non-nil only with StatusDegraded. It wraps one of
	// ErrVaultValueMissing, ErrInvalidBase64, ErrInvalidPayload and
	// ErrSectionMissing.
	Reason error

	// Duplicates lists names dropped because they appeared more than once in
	// a single source.
	Duplicates []string
}

// Resolve builds the application secret set.
//
// When vaultKey is non-empty, its value is read from base and decoded with
// DecodePayload. The vault entries come first, followed by every local entry
// whose name is not in the vault set.
//
// Resolve never fails: a vault payload that can't be used is reported in the
// Result and logged, and the local secrets are used on their own.
func Resolve(ctx context.Context, base configbp.Getter, vaultKey string, local ApplicationSecrets, logger log.Logger) Result {
	logger = log.OrNop(logger)

	localSet, duplicates := local.Set()
	result := Result{
		UserName:   local.UserName,
		Set:        localSet,
		Status:     StatusLocalOnly,
		Duplicates: duplicates,
	}
	if vaultKey == "" {
		logger.Log(ctx, log.DebugLevel, "secrets: no vault key configured, using local secrets", "count", localSet.Len())
		result.logDuplicates(ctx, logger)
		return result
	}

	vault, err := vaultSecrets(base, vaultKey)
	if err != nil {
		result.Status = StatusDegraded
		result.Reason = err
		vaultFallbacks.With(prometheus.Labels{prometheusbp.ReasonLabel: reasonLabel(err)}).Inc()
		logger.Log(
			ctx,
			log.WarnLevel,
			"secrets: vault secrets unavailable, using local secrets only",
			"key", vaultKey,
			"err", err,
		)
		result.logDuplicates(ctx, logger)
		return result
	}

	vaultSet, vaultDuplicates := vault.Set()
	result.Status = StatusVault
	result.Set = Merge(vaultSet, localSet)
	result.Duplicates = append(vaultDuplicates, duplicates...)
	if vault.UserName != "" {
		result.UserName = vault.UserName
	}
	logger.Log(
		ctx,
		log.DebugLevel,
		"secrets: resolved secrets from vault",
		"key", vaultKey,
		"vault", vaultSet.Len(),
		"total", result.Set.Len(),
	)
	result.logDuplicates(ctx, logger)
	return result
}

func (r Result) logDuplicates(ctx context.Context, logger log.Logger) {
	if len(r.Duplicates) > 0 {
		logger.Log(ctx, log.WarnLevel, "secrets: duplicated secret names ignored", "names", r.Duplicates)
	}
}

func vaultSecrets(base configbp.Getter, key string) (ApplicationSecrets, error) {
	var value string
	var ok bool
	if base != nil {
		value, ok = base.Get(key)
	}
	if !ok || value == "" {
		return ApplicationSecrets{}, ErrVaultValueMissing
	}
	return DecodePayload(value)
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrVaultValueMissing):
		return "missing"
	case errors.Is(err, ErrInvalidBase64):
		return "base64"
	case errors.Is(err, ErrSectionMissing):
		return "section"
	case errors.Is(err, ErrInvalidPayload):
		return "payload"
	default:
		return "other"
	}
}
