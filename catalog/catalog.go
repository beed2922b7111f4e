package catalog

// App is the application namespace under which every weft destination hash
// is derived. Changing it changes every address on the network.
const App = "weft"

const (
	/*destination aspects*/

	// Delivery - aspect of the inbound destination that receives addressed
	// messages for the local identity.
	Delivery = "delivery"

	// Propagation - aspect used when a message is handed to the network for
	// store-and-forward delivery instead of a direct link.
	Propagation = "propagation"

	// Streaming - aspect carrying real-time media frames.
	Streaming = "streaming"

	// Telephone - aspect carrying call signaling and call media.
	Telephone = "telephone"
)

// Well-known envelope field keys. Fields are optional annotations on a
// message; unknown keys pass through untouched.
const (
	FieldFileAttachment = "file"
	FieldAudio          = "audio"
	FieldTelemetry      = "telemetry"
)
