package catalog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/kolo/xmlrpc"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
)

// decodeResponse returns the single result of a method response, or an
// ErrCatalogFault error when the server answered with a fault. Structs decode
// to map[string]interface{}, arrays to []interface{} and integers to int64.
func decodeResponse(data []byte) (interface{}, error) {
	resp := xmlrpc.Response(data)
	if err := resp.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return nil, fmt.Errorf("%w: %d: %s", pkgerrors.ErrCatalogFault, fault.Code, fault.String)
		}
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrCatalogResponse, err)
	}
	var result interface{}
	if err := resp.Unmarshal(&result); err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrCatalogResponse, err)
	}
	return result, nil
}

// rootElement returns the local name of the document element.
func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%w: empty document", pkgerrors.ErrCatalogResponse)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", pkgerrors.ErrCatalogResponse, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}
