// Package config holds ringpipe's two kinds of configuration.
//
// Tunables are the pipeline parameters that can change while it runs: the
// producer period, the emergency threshold and the bound for generated values.
// They are read under an RWMutex, every setter validates before storing, and
// ApplyText accepts the line protocol served at /modconfig:
//
//	timer_period_ms 250
//	emergency_threshold 50
//	max_random 1000
//
// A rejected line is tagged ErrOutOfRange (well-formed, value not accepted,
// old value kept) or ErrMalformedLine.
//
// Config is the daemon's startup configuration. Loader builds it in layers:
//
//  1. Default()
//  2. each file added with AddLayer, JSON or YAML by extension, deep-merged
//     over the previous result
//  3. validation of the merged document against the embedded JSON schema
//  4. environment overrides named RINGPIPE_<SECTION>_<FIELD>, for example
//     RINGPIPE_PIPELINE_EMERGENCY_THRESHOLD=60
//  5. Config.Validate for cross-field rules
//
// Every failure matches errors.ErrInvalidConfig.
package config
