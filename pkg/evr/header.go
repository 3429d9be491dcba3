package evr

import (
	"fmt"
	"os"

	rpmutils "github.com/sassoftware/go-rpmutils"
)

// ReadHeader returns the identity recorded in an RPM file's header. It is
// slower than ParseFilename but does not trust the file name.
func ReadHeader(path string) (NEVRA, error) {
	f, err := os.Open(path)
	if err != nil {
		return NEVRA{}, err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return NEVRA{}, fmt.Errorf("failed to read rpm header of %s: %w", path, err)
	}
	nevra, err := rpm.Header.GetNEVRA()
	if err != nil {
		return NEVRA{}, fmt.Errorf("failed to read identity of %s: %w", path, err)
	}
	return NEVRA{
		Name: nevra.Name,
		EVR: EVR{
			Epoch:   nevra.Epoch,
			Version: nevra.Version,
			Release: nevra.Release,
		},
		Arch: nevra.Arch,
	}, nil
}
