package ws

import "errors"

var errReadOnly = errors.New("ws: hub does not accept input")
