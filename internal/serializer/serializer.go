// Package serializer renders an archive as a single self-contained
// FlatBuffers bundle carrying the manifest and the payload together.
package serializer

import (
	"errors"
	"fmt"

	"github.com/TFMV/squeeze/internal/manifest"
	schema "github.com/TFMV/squeeze/schema/squeeze"

	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrInvalidBundle is returned when bundle bytes are too short to hold a
// FlatBuffers root table.
var ErrInvalidBundle = errors.New("invalid bundle")

// minBundleSize is the smallest buffer that can hold a root offset plus a
// vtable.
const minBundleSize = 8

// SerializeBundle packs a manifest and its payload into bundle bytes.
func SerializeBundle(m *manifest.Manifest, payload []byte) ([]byte, error) {
	manifestJSON, err := manifest.Encode(m)
	if err != nil {
		return nil, err
	}

	builder := flatbuffers.NewBuilder(1024)
	payloadOffset := builder.CreateByteVector(payload)
	manifestOffset := builder.CreateByteVector(manifestJSON)
	idOffset := builder.CreateString(m.UploadID)

	schema.EnvelopeStart(builder)
	schema.EnvelopeAddUploadId(builder, idOffset)
	schema.EnvelopeAddManifest(builder, manifestOffset)
	schema.EnvelopeAddPayload(builder, payloadOffset)
	builder.Finish(schema.EnvelopeEnd(builder))
	return builder.FinishedBytes(), nil
}

// DeserializeBundle unpacks bundle bytes into the manifest and payload.
// The manifest is revalidated, so a tampered bundle fails here rather than
// during reconstruction.
func DeserializeBundle(data []byte) (*manifest.Manifest, []byte, error) {
	if len(data) < minBundleSize {
		return nil, nil, ErrInvalidBundle
	}

	envelope := schema.GetRootAsEnvelope(data, 0)
	m, err := manifest.Decode(envelope.ManifestBytes())
	if err != nil {
		return nil, nil, fmt.Errorf("bundle manifest: %w", err)
	}

	payload := make([]byte, envelope.PayloadLength())
	copy(payload, envelope.PayloadBytes())
	return m, payload, nil
}

// BundleUploadID reads just the upload ID from bundle bytes.
func BundleUploadID(data []byte) (string, error) {
	if len(data) < minBundleSize {
		return "", ErrInvalidBundle
	}
	return string(schema.GetRootAsEnvelope(data, 0).UploadId()), nil
}
