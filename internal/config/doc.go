// Package config loads fishbowl's YAML configuration file.
//
// Every field has a default, so a missing file is not an error. Fields
// present in the file override the defaults; unknown fields are rejected.
// Command-line flags are applied on top by the cli package.
//
//	containerd:
//	  address: /run/containerd/containerd.sock
//	  namespace: fishbowl
//	engine:
//	  source_url: https://github.com/official-stockfish/Stockfish/archive/refs/tags/sf_17.tar.gz
//	  version: "17"
//	  arch: x86-64-avx2
//	container:
//	  name: stockfish-engine
//	publish:
//	  endpoint: localhost:9000
//	  bucket: engines
package config
