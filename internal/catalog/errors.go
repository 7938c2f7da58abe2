package catalog

import "errors"

var (
	ErrCatalogUnreachable = errors.New("catalog unreachable")
	ErrCatalogStatus      = errors.New("catalog http status")
	ErrNoStations         = errors.New("no stations match query")
)
