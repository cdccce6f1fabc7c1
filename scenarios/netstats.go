package scenarios

import (
	"github.com/cboone/expecter"
)

// HelpLines is the shell's help table, in the order it is printed, followed
// by the prompt.
var HelpLines = []string{
	"Command              Description",
	"---------------------------------------",
	"reboot               Reboot the node",
	"ifconfig             Configure network interfaces",
	">",
}

// NetstatsOptions tunes NetstatsL2.
type NetstatsOptions struct {
	// AllowTXErrors accepts any TX error count instead of requiring zero.
	AllowTXErrors bool
}

// IfconfigPatterns returns the regular expressions ifconfig output must
// match, in order. The first one matches the echoed command.
func IfconfigPatterns(opts NetstatsOptions) []string {
	txErrors := `        TX succeeded \d+ errors 0`
	if opts.AllowTXErrors {
		txErrors = `        TX succeeded \d+ errors \d+`
	}
	return []string{
		`ifconfig`,
		`Iface  \d+   HWaddr: ([0-9a-f]{2}:){1,}([0-9a-f]{2}) (Channel: [11,26]  )?(Page: \d+  )?(NID: 0x[0-9a-f]{2})?`,
		`       Source address length: \d+`,
		`       Statistics for Layer 2`,
		`        RX packets \d+  bytes \d+`,
		`        TX packets \d+ \(Multicast: \d+\)  bytes \d+`,
		txErrors,
	}
}

// NetstatsL2 checks the shell help table, then the layer 2 statistics that
// ifconfig prints for the first interface.
func NetstatsL2(opts NetstatsOptions) expecter.TestFunc {
	patterns := IfconfigPatterns(opts)
	exps := make([]expecter.Expectation, len(patterns))
	for i, p := range patterns {
		exps[i] = expecter.Regexp(p)
	}

	return func(s *expecter.Session) error {
		if err := s.SendLine("help"); err != nil {
			return err
		}
		for _, line := range HelpLines {
			if _, err := s.ExpectExact(line); err != nil {
				return err
			}
		}

		if err := s.SendLine("ifconfig"); err != nil {
			return err
		}
		return s.ExpectAll(exps)
	}
}
