package scenarios

import (
	"github.com/cboone/expecter"
)

// LoremIpsum is the text the lz4 application compresses and restores.
const LoremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Lorem ipsum dolor site amat."

const ratioPattern = `Data compressed with success \(ratio: (\d+.\d+)\)\r\n`

// PkgLZ4 checks that the lz4 application actually shrinks its input, then
// that the decompressed text matches the original.
func PkgLZ4() expecter.TestFunc {
	ratioLine := expecter.Regexp(ratioPattern)

	return func(s *expecter.Session) error {
		m, err := s.ExpectMatch(ratioLine)
		if err != nil {
			return err
		}
		ratio, err := m.Float(1)
		if err != nil {
			return err
		}
		if err := expecter.Assert(ratio < 1, "No compression (ratio: %v)", ratio); err != nil {
			return err
		}

		for _, line := range []string{
			"Data decompressed with success!",
			"Validation done, decompressed string:",
			LoremIpsum,
		} {
			if _, err := s.ExpectExact(line); err != nil {
				return err
			}
		}
		return nil
	}
}
