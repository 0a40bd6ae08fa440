package config

import (
	"strings"

	"crosbuild.dev/alchemist/internal/version"
)

// forceUse hard-codes USE flags that would otherwise come from USE_EXPAND
// profile machinery this repository doesn't model.
// TODO: support USE_EXPAND and remove this hack.
var forceUse = []string{
	"board_use_arm64-generic",
	"chromeos_kernel_family_chromeos",
	"cpu_flags_arm_neon",
	"elibc_glibc",
	"input_devices_evdev",
	"kernel_linux",
	"linux_firmware_iwlwifi-all",
	"linux_firmware_rt2870",
	"linux_firmware_rtl8153",
	"ozone_platform_default_gbm",
	"ozone_platform_gbm",
	"ozone_platform_headless",
	"python_single_target_python3_6",
	"python_targets_python3_6",
	"ruby_targets_ruby25",
	"video_cards_llvmpipe",
}

// forceProvided hard-codes packages that should never be resolved as
// buildable: they are either provided by the toolchain outside Portage, or
// only ever needed as a BDEPEND and declaring them as RDEPEND would create
// a spurious runtime dependency.
var forceProvided = []string{
	"virtual/rust-binaries",
	"virtual/rust",
}

// DefaultHackSource returns the Source backed by the hard-coded workaround
// tables above. It should be appended to every Bundle.
func DefaultHackSource() *HackSource {
	var providedPackages []*TargetPackage
	for _, name := range forceProvided {
		providedPackages = append(providedPackages, &TargetPackage{
			Name:    name,
			Version: &version.Version{Main: []string{"0"}},
		})
	}
	return NewHackSource(strings.Join(forceUse, " "), providedPackages)
}
