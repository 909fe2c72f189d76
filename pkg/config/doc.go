// Package config loads the YAML configuration of coltable.
//
// A single Config covers the physical store of new tables, logging, metrics
// and tracing. Fields absent from the file keep the values of Default.
//
// # Usage
//
//	cfg, err := config.Load("coltable.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	factory, err := cfg.Store.Factory(logger.Get())
//
// # Environment Variable Substitution
//
// ${VAR_NAME} is replaced with the value of VAR_NAME before parsing; an
// unset variable becomes the empty string.
//
//	# coltable.yaml
//	store:
//	  format: stream
//	  compression: ${COLTABLE_CODEC}
//	  batch_size: 8192
//	logging:
//	  level: debug
//	metrics:
//	  enabled: true
//	  address: ":9090"
//
// # Store Formats
//
//   - file: Arrow IPC file, optionally with lz4 or zstd body compression and
//     memory-mapped reads.
//   - stream: Arrow IPC stream wrapped in a whole-file codec (gzip, snappy,
//     s2, lz4, zstd or none).
package config
