//go:build opencl && windows

package opencl

// Hybrid-graphics drivers look for these exports in the executable and route
// the process to the discrete GPU when they are set.

/*
#include <stdint.h>

__declspec(dllexport) uint32_t NvOptimusEnablement = 1;
__declspec(dllexport) uint32_t AmdPowerXpressRequestHighPerformance = 1;
*/
import "C"
