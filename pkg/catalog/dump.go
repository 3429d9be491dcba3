package catalog

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
)

// dumpDocument is the rhn-satellite export document returned by dump calls.
// Only the sections grinder reads are mapped.
type dumpDocument struct {
	XMLName         xml.Name            `xml:"rhn-satellite"`
	Version         string              `xml:"version,attr"`
	ChannelFamilies []dumpChannelFamily `xml:"rhn-channel-families>rhn-channel-family"`
	Channels        []dumpChannel       `xml:"rhn-channels>rhn-channel"`
	Packages        []dumpPackageShort  `xml:"rhn-packages-short>rhn-package-short"`
	KickstartTrees  []dumpKickstartTree `xml:"rhn-kickstartable-trees>rhn-kickstartable-tree"`
}

type dumpChannelFamily struct {
	Label         string `xml:"label,attr"`
	ChannelLabels string `xml:"channel-labels,attr"`
}

type dumpChannel struct {
	Label          string `xml:"label,attr"`
	Packages       string `xml:"packages,attr"`
	KickstartTrees string `xml:"kickstartable-trees,attr"`
}

type dumpPackageShort struct {
	ID           string `xml:"id,attr"`
	Name         string `xml:"name,attr"`
	Epoch        string `xml:"epoch,attr"`
	Version      string `xml:"version,attr"`
	Release      string `xml:"release,attr"`
	Arch         string `xml:"package-arch,attr"`
	Size         string `xml:"package-size,attr"`
	MD5Sum       string `xml:"md5sum,attr"`
	LastModified string `xml:"last-modified,attr"`
}

type dumpKickstartTree struct {
	Label string              `xml:"label,attr"`
	Files []dumpKickstartFile `xml:"rhn-kickstart-files>rhn-kickstart-file"`
}

type dumpKickstartFile struct {
	RelativePath string `xml:"relative-path,attr"`
	Size         string `xml:"file-size,attr"`
	MD5Sum       string `xml:"md5sum,attr"`
}

func parseDump(data []byte, supported version.Constraints) (*dumpDocument, error) {
	var doc dumpDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrCatalogResponse, err)
	}
	if doc.Version == "" || supported == nil {
		return &doc, nil
	}
	v, err := version.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrUnsupportedDumpVersion, doc.Version)
	}
	if !supported.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", pkgerrors.ErrUnsupportedDumpVersion, v, supported)
	}
	return &doc, nil
}

// fields splits a space separated attribute list.
func fields(attr string) []string {
	return strings.Fields(attr)
}
