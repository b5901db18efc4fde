package onnx

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Vector extensions that ONNX Runtime's CPU kernels can use on this machine.
// Inference on a machine without any of these is several times slower, so we log them.
func cpuFeatures() string {
	features := []string{}
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512")
		}
		if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		}
		if cpu.X86.HasFMA {
			features = append(features, "fma")
		}
		if cpu.X86.HasSSE41 {
			features = append(features, "sse4.1")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "neon")
		}
		if cpu.ARM64.HasASIMDDP {
			features = append(features, "dotprod")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	if len(features) == 0 {
		return "none"
	}
	return strings.Join(features, ",")
}
