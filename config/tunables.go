package config

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c360/ringpipe/errors"
)

// Default runtime tunables
const (
	DefaultTimerPeriodMS      uint32 = 500
	DefaultEmergencyThreshold int    = 80
	DefaultMaxRandom          uint32 = 300
)

// Keys accepted by ApplyText
const (
	KeyTimerPeriodMS      = "timer_period_ms"
	KeyEmergencyThreshold = "emergency_threshold"
	KeyMaxRandom          = "max_random"
)

// Kinds of rejected configuration lines. Both also match errors.ErrInvalidConfig.
var (
	// ErrOutOfRange marks a well-formed value the tunable does not accept
	ErrOutOfRange = stderrors.New("value out of range")
	// ErrMalformedLine marks a line for a known key that is not "key number"
	ErrMalformedLine = stderrors.New("malformed configuration line")
)

// Values is a snapshot of the pipeline tunables
type Values struct {
	TimerPeriodMS      uint32 `json:"timer_period_ms"`
	EmergencyThreshold int    `json:"emergency_threshold"`
	MaxRandom          uint32 `json:"max_random"`
}

// DefaultValues returns 500 ms, 80 % and 300
func DefaultValues() Values {
	return Values{
		TimerPeriodMS:      DefaultTimerPeriodMS,
		EmergencyThreshold: DefaultEmergencyThreshold,
		MaxRandom:          DefaultMaxRandom,
	}
}

// Validate reports the first out-of-range value
func (v Values) Validate() error {
	if v.TimerPeriodMS == 0 {
		return invalidValue(ErrOutOfRange, KeyTimerPeriodMS, "must be greater than 0")
	}
	if v.EmergencyThreshold < 0 || v.EmergencyThreshold > 100 {
		return invalidValue(ErrOutOfRange, KeyEmergencyThreshold, "must be between 0 and 100")
	}
	if v.MaxRandom == 0 {
		return invalidValue(ErrOutOfRange, KeyMaxRandom, "must be greater than 0")
	}
	return nil
}

// String renders the values in the configuration text format
func (v Values) String() string {
	return fmt.Sprintf("%s %d\n%s %d\n%s %d\n",
		KeyTimerPeriodMS, v.TimerPeriodMS,
		KeyEmergencyThreshold, v.EmergencyThreshold,
		KeyMaxRandom, v.MaxRandom)
}

func invalidValue(kind error, key, reason string) error {
	return errors.WrapInvalid(fmt.Errorf("%w (%w): %s %s", errors.ErrInvalidConfig, kind, key, reason),
		"Tunables", "Set", "validate "+key)
}

// Tunables holds the pipeline parameters that may change while it runs.
// Readers always see a value that passed validation.
type Tunables struct {
	mu     sync.RWMutex
	values Values
	logger *slog.Logger
}

// NewTunables creates tunables starting from v
func NewTunables(v Values, logger *slog.Logger) (*Tunables, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tunables{values: v, logger: logger.With("component", "tunables")}, nil
}

// Snapshot returns the current values
func (t *Tunables) Snapshot() Values {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values
}

// TimerPeriod returns the producer period
func (t *Tunables) TimerPeriod() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Duration(t.values.TimerPeriodMS) * time.Millisecond
}

// Threshold returns the emergency threshold in percent
func (t *Tunables) Threshold() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values.EmergencyThreshold
}

// MaxRandom returns the exclusive upper bound for generated values
func (t *Tunables) MaxRandom() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values.MaxRandom
}

// SetTimerPeriodMS changes the producer period. Zero is rejected.
func (t *Tunables) SetTimerPeriodMS(ms uint32) error {
	return t.update(KeyTimerPeriodMS, func(v *Values) { v.TimerPeriodMS = ms })
}

// SetThreshold changes the emergency threshold. Values outside 0..100 are rejected.
func (t *Tunables) SetThreshold(percent int) error {
	return t.update(KeyEmergencyThreshold, func(v *Values) { v.EmergencyThreshold = percent })
}

// SetMaxRandom changes the bound for generated values. Zero is rejected.
func (t *Tunables) SetMaxRandom(bound uint32) error {
	return t.update(KeyMaxRandom, func(v *Values) { v.MaxRandom = bound })
}

func (t *Tunables) update(key string, set func(*Values)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.values
	set(&next)
	if err := next.Validate(); err != nil {
		t.logger.Warn("tunable rejected", "key", key, "error", err)
		return err
	}
	t.values = next
	t.logger.Info("tunable changed", "key", key, "values", next.String())
	return nil
}

// ApplyText applies "key value" assignments, one per line. Unknown keys and
// blank lines are ignored. Every valid assignment is applied even when other
// lines fail; the failures are returned joined.
func (t *Tunables) ApplyText(text string) (int, error) {
	var (
		applied int
		errs    []error
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			if isKnownKey(fields[0]) {
				errs = append(errs, invalidValue(ErrMalformedLine, fields[0], "expects exactly one value"))
			}
			continue
		}

		key, raw := fields[0], fields[1]
		var err error
		switch key {
		case KeyTimerPeriodMS:
			var n uint64
			if n, err = strconv.ParseUint(raw, 10, 32); err == nil {
				err = t.SetTimerPeriodMS(uint32(n))
			}
		case KeyEmergencyThreshold:
			var n int
			if n, err = strconv.Atoi(raw); err == nil {
				err = t.SetThreshold(n)
			}
		case KeyMaxRandom:
			var n uint64
			if n, err = strconv.ParseUint(raw, 10, 32); err == nil {
				err = t.SetMaxRandom(uint32(n))
			}
		default:
			t.logger.Debug("unknown tunable ignored", "key", key)
			continue
		}

		if err != nil {
			if !errors.IsInvalid(err) {
				err = invalidValue(ErrMalformedLine, key, fmt.Sprintf("has malformed value %q", raw))
			}
			errs = append(errs, err)
			continue
		}
		applied++
	}

	return applied, stderrors.Join(errs...)
}

// String renders the current values in the configuration text format
func (t *Tunables) String() string {
	return t.Snapshot().String()
}

func isKnownKey(key string) bool {
	return key == KeyTimerPeriodMS || key == KeyEmergencyThreshold || key == KeyMaxRandom
}
