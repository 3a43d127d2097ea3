package objectio

// Structured logging field names, matching the short lower-case
// convention of containerd/log's log.Fields (see log/fields.go): "oid",
// "objectno" and friends rather than verbose CamelCase keys.
const (
	fieldOID      = "oid"
	fieldObjectNo = "objectno"
	fieldCookie   = "cookie"
	fieldState    = "state"
	fieldSnapID   = "snapid"
)
