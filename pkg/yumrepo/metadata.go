package yumrepo

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/mholt/archives"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/model"
)

// RepoMd is repodata/repomd.xml.
type RepoMd struct {
	Revision string `xml:"revision"`
	Data     []Data `xml:"data"`
}

// Data is one metadata file announced by repomd.xml.
type Data struct {
	Type     string   `xml:"type,attr"`
	Checksum Checksum `xml:"checksum"`
	Location Location `xml:"location"`
	Size     string   `xml:"size"`
}

// Checksum is a <checksum type="..."> element.
type Checksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Location is a <location href="..."/> element.
type Location struct {
	Href string `xml:"href,attr"`
}

// Primary is the <metadata> document of primary.xml.
type Primary struct {
	Count    int       `xml:"packages,attr"`
	Packages []Package `xml:"package"`
}

// Package is a <package> entry of primary.xml.
type Package struct {
	Type     string   `xml:"type,attr"`
	Name     string   `xml:"name"`
	Arch     string   `xml:"arch"`
	Version  Version  `xml:"version"`
	Checksum Checksum `xml:"checksum"`
	Size     struct {
		Package string `xml:"package,attr"`
	} `xml:"size"`
	Location Location `xml:"location"`
}

// Version is the <version epoch= ver= rel=/> element.
type Version struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

// ParseRepoMd decodes repomd.xml.
func ParseRepoMd(r io.Reader) (*RepoMd, error) {
	var md RepoMd
	if err := xml.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("%w: repomd.xml: %w", pkgerrors.ErrRepoMetadata, err)
	}
	return &md, nil
}

// Find returns the data entry of the given type.
func (md *RepoMd) Find(typ string) (Data, bool) {
	for _, d := range md.Data {
		if d.Type == typ {
			return d, true
		}
	}
	return Data{}, false
}

// Item turns a data entry into a fetchable item stored at its href.
func (d Data) Item() (model.PackageItem, error) {
	size, err := strconv.ParseInt(strings.TrimSpace(d.Size), 10, 64)
	if err != nil {
		return model.PackageItem{}, fmt.Errorf("%w: size of %s: %q", pkgerrors.ErrRepoMetadata, d.Type, d.Size)
	}
	return model.PackageItem{
		Name:      d.Type,
		Size:      size,
		Checksum:  model.Checksum{Type: d.Checksum.Type, Value: strings.TrimSpace(d.Checksum.Value)},
		FetchName: d.Location.Href,
		FetchPath: model.RepoPath(d.Location.Href),
		FileName:  d.Location.Href,
	}, nil
}

// ParsePrimary decodes primary.xml. name is the file name the data came
// from and selects the decompressor.
func ParsePrimary(name string, r io.Reader) (*Primary, error) {
	rc, err := decompress(name, r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var p Primary
	if err := xml.NewDecoder(rc).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrRepoMetadata, path.Base(name), err)
	}
	return &p, nil
}

// Item turns a primary entry into a fetchable item stored at its href.
func (p Package) Item() (model.PackageItem, error) {
	size, err := strconv.ParseInt(strings.TrimSpace(p.Size.Package), 10, 64)
	if err != nil {
		return model.PackageItem{}, fmt.Errorf("%w: size of %s: %q", pkgerrors.ErrRepoMetadata, p.Name, p.Size.Package)
	}
	return model.PackageItem{
		Name:      p.Name,
		Epoch:     p.Version.Epoch,
		Version:   p.Version.Ver,
		Release:   p.Version.Rel,
		Arch:      p.Arch,
		Size:      size,
		Checksum:  model.Checksum{Type: p.Checksum.Type, Value: strings.TrimSpace(p.Checksum.Value)},
		FetchName: p.Location.Href,
		FetchPath: model.RepoPath(p.Location.Href),
		FileName:  p.Location.Href,
	}, nil
}

func decompress(name string, r io.Reader) (io.ReadCloser, error) {
	var d archives.Decompressor
	switch path.Ext(name) {
	case ".gz":
		d = archives.Gz{}
	case ".xz":
		d = archives.Xz{}
	case ".zst":
		d = archives.Zstd{}
	case ".bz2":
		d = archives.Bz2{}
	default:
		return io.NopCloser(r), nil
	}
	rc, err := d.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", pkgerrors.ErrRepoMetadata, path.Base(name), err)
	}
	return rc, nil
}
