//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// vx4 packs and unpacks guest words with encoding/binary.LittleEndian
// throughout, which assumes a little-endian host architecture.
var _ = "vx4 requires a little-endian architecture" + 1
