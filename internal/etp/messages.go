package etp

import "fmt"

// Message is implemented by every message body.
type Message interface {
	Protocol() Protocol
	MessageType() int32
}

// ArrayType is the logical element type of a data array. Elements always
// travel little-endian.
type ArrayType int32

const (
	ArrayOfBoolean ArrayType = 0
	ArrayOfInt8    ArrayType = 1
	ArrayOfUInt8   ArrayType = 2
	ArrayOfInt16   ArrayType = 3
	ArrayOfInt32   ArrayType = 4
	ArrayOfInt64   ArrayType = 5
	ArrayOfUInt16  ArrayType = 6
	ArrayOfUInt32  ArrayType = 7
	ArrayOfUInt64  ArrayType = 8
	ArrayOfFloat32 ArrayType = 9
	ArrayOfDouble  ArrayType = 10
	ArrayOfString  ArrayType = 19
)

var arrayTypeNames = map[ArrayType]string{
	ArrayOfBoolean: "arrayOfBoolean",
	ArrayOfInt8:    "arrayOfInt8",
	ArrayOfUInt8:   "arrayOfUInt8",
	ArrayOfInt16:   "arrayOfInt16LE",
	ArrayOfInt32:   "arrayOfInt32LE",
	ArrayOfInt64:   "arrayOfInt64LE",
	ArrayOfUInt16:  "arrayOfUInt16LE",
	ArrayOfUInt32:  "arrayOfUInt32LE",
	ArrayOfUInt64:  "arrayOfUInt64LE",
	ArrayOfFloat32: "arrayOfFloat32LE",
	ArrayOfDouble:  "arrayOfDouble64LE",
	ArrayOfString:  "arrayOfString",
}

func (t ArrayType) String() string {
	if n, ok := arrayTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("arrayType(%d)", int32(t))
}

// DataArrayIdentifier names an array: the container URI and the dataset
// path inside it.
type DataArrayIdentifier struct {
	URI            string `msgpack:"uri"`
	PathInResource string `msgpack:"pathInResource"`
}

// DataArrayMetadata describes a stored array. Dimensions are ordered
// fastest-varying first.
type DataArrayMetadata struct {
	Dimensions       []uint64  `msgpack:"dimensions"`
	LogicalArrayType ArrayType `msgpack:"logicalArrayType"`
	// StorageClass is the container's own name for the element class.
	StorageClass     string `msgpack:"storageClass,omitempty"`
	CompressionLevel int    `msgpack:"compressionLevel,omitempty"`
}

// DataArray is a block of raw little-endian elements.
type DataArray struct {
	Dimensions []uint64  `msgpack:"dimensions"`
	Type       ArrayType `msgpack:"type"`
	Data       []byte    `msgpack:"data"`
}

// GetDataSubarraysType selects a hyperslab. Strides and Blocks may be
// empty, meaning ones.
type GetDataSubarraysType struct {
	UID     DataArrayIdentifier `msgpack:"uid"`
	Starts  []uint64            `msgpack:"starts"`
	Counts  []uint64            `msgpack:"counts"`
	Strides []uint64            `msgpack:"strides,omitempty"`
	Blocks  []uint64            `msgpack:"blocks,omitempty"`
}

type PutDataArraysType struct {
	UID   DataArrayIdentifier `msgpack:"uid"`
	Array DataArray           `msgpack:"array"`
}

type PutDataSubarraysType struct {
	UID     DataArrayIdentifier `msgpack:"uid"`
	Data    DataArray           `msgpack:"data"`
	Starts  []uint64            `msgpack:"starts"`
	Counts  []uint64            `msgpack:"counts"`
	Strides []uint64            `msgpack:"strides,omitempty"`
	Blocks  []uint64            `msgpack:"blocks,omitempty"`
}

type PutUninitializedDataArrayType struct {
	UID      DataArrayIdentifier `msgpack:"uid"`
	Metadata DataArrayMetadata   `msgpack:"metadata"`
}

// AttributeKind discriminates AttributeValue.
type AttributeKind int32

const (
	AttributeString AttributeKind = iota
	AttributeStrings
	AttributeDouble
	AttributeLong
	AttributeDoubles
	AttributeLongs
)

// AttributeValue is a scalar or 1-D attribute value. Scalars use the
// first element of the matching slice, except AttributeString.
type AttributeValue struct {
	Kind    AttributeKind `msgpack:"kind"`
	String  string        `msgpack:"string,omitempty"`
	Strings []string      `msgpack:"strings,omitempty"`
	Doubles []float64     `msgpack:"doubles,omitempty"`
	Longs   []int64       `msgpack:"longs,omitempty"`
}

// SupportedProtocol is one protocol offered in the session handshake.
type SupportedProtocol struct {
	Protocol Protocol `msgpack:"protocol"`
	Role     string   `msgpack:"role"`
}

// Core protocol.

type RequestSession struct {
	ApplicationName    string              `msgpack:"applicationName"`
	ApplicationVersion string              `msgpack:"applicationVersion"`
	ClientInstanceID   string              `msgpack:"clientInstanceId"`
	RequestedProtocols []SupportedProtocol `msgpack:"requestedProtocols"`
}

type OpenSession struct {
	ApplicationName    string              `msgpack:"applicationName"`
	ApplicationVersion string              `msgpack:"applicationVersion"`
	ServerInstanceID   string              `msgpack:"serverInstanceId"`
	SessionID          string              `msgpack:"sessionId"`
	SupportedProtocols []SupportedProtocol `msgpack:"supportedProtocols"`
}

type CloseSession struct {
	Reason string `msgpack:"reason"`
}

type ProtocolException struct {
	Error ErrorInfo `msgpack:"error"`
}

func (RequestSession) Protocol() Protocol    { return ProtocolCore }
func (RequestSession) MessageType() int32    { return MsgRequestSession }
func (OpenSession) Protocol() Protocol       { return ProtocolCore }
func (OpenSession) MessageType() int32       { return MsgOpenSession }
func (CloseSession) Protocol() Protocol      { return ProtocolCore }
func (CloseSession) MessageType() int32      { return MsgCloseSession }
func (ProtocolException) Protocol() Protocol { return ProtocolCore }
func (ProtocolException) MessageType() int32 { return MsgProtocolException }

// DataArray protocol. Requests and responses are keyed maps so one message
// can carry several arrays; a response uses the request's keys.

type GetDataArrayMetadata struct {
	DataArrays map[string]DataArrayIdentifier `msgpack:"dataArrays"`
}

type GetDataArrayMetadataResponse struct {
	ArrayMetadata map[string]DataArrayMetadata `msgpack:"arrayMetadata"`
}

type GetDataArrays struct {
	DataArrays map[string]DataArrayIdentifier `msgpack:"dataArrays"`
}

type GetDataArraysResponse struct {
	DataArrays map[string]DataArray `msgpack:"dataArrays"`
}

type GetDataSubarrays struct {
	DataSubarrays map[string]GetDataSubarraysType `msgpack:"dataSubarrays"`
}

type GetDataSubarraysResponse struct {
	DataSubarrays map[string]DataArray `msgpack:"dataSubarrays"`
}

type PutDataArrays struct {
	DataArrays map[string]PutDataArraysType `msgpack:"dataArrays"`
}

type PutDataArraysResponse struct {
	Success map[string]string `msgpack:"success"`
}

type PutDataSubarrays struct {
	DataSubarrays map[string]PutDataSubarraysType `msgpack:"dataSubarrays"`
}

type PutDataSubarraysResponse struct {
	Success map[string]string `msgpack:"success"`
}

type PutUninitializedDataArrays struct {
	DataArrays map[string]PutUninitializedDataArrayType `msgpack:"dataArrays"`
}

type PutUninitializedDataArraysResponse struct {
	Success map[string]string `msgpack:"success"`
}

func (GetDataArrayMetadata) Protocol() Protocol               { return ProtocolDataArray }
func (GetDataArrayMetadata) MessageType() int32               { return MsgGetDataArrayMetadata }
func (GetDataArrayMetadataResponse) Protocol() Protocol       { return ProtocolDataArray }
func (GetDataArrayMetadataResponse) MessageType() int32       { return MsgGetDataArrayMetadataResponse }
func (GetDataArrays) Protocol() Protocol                      { return ProtocolDataArray }
func (GetDataArrays) MessageType() int32                      { return MsgGetDataArrays }
func (GetDataArraysResponse) Protocol() Protocol              { return ProtocolDataArray }
func (GetDataArraysResponse) MessageType() int32              { return MsgGetDataArraysResponse }
func (GetDataSubarrays) Protocol() Protocol                   { return ProtocolDataArray }
func (GetDataSubarrays) MessageType() int32                   { return MsgGetDataSubarrays }
func (GetDataSubarraysResponse) Protocol() Protocol           { return ProtocolDataArray }
func (GetDataSubarraysResponse) MessageType() int32           { return MsgGetDataSubarraysResponse }
func (PutDataArrays) Protocol() Protocol                      { return ProtocolDataArray }
func (PutDataArrays) MessageType() int32                      { return MsgPutDataArrays }
func (PutDataArraysResponse) Protocol() Protocol              { return ProtocolDataArray }
func (PutDataArraysResponse) MessageType() int32              { return MsgPutDataArraysResponse }
func (PutDataSubarrays) Protocol() Protocol                   { return ProtocolDataArray }
func (PutDataSubarrays) MessageType() int32                   { return MsgPutDataSubarrays }
func (PutDataSubarraysResponse) Protocol() Protocol           { return ProtocolDataArray }
func (PutDataSubarraysResponse) MessageType() int32           { return MsgPutDataSubarraysResponse }
func (PutUninitializedDataArrays) Protocol() Protocol         { return ProtocolDataArray }
func (PutUninitializedDataArrays) MessageType() int32         { return MsgPutUninitializedDataArrays }
func (PutUninitializedDataArraysResponse) Protocol() Protocol { return ProtocolDataArray }
func (PutUninitializedDataArraysResponse) MessageType() int32 { return MsgPutUninitializedDataArraysResponse }

// Array proxy protocol.

type PutAttributes struct {
	UID        DataArrayIdentifier       `msgpack:"uid"`
	Attributes map[string]AttributeValue `msgpack:"attributes"`
}

type PutAttributesResponse struct{}

type GetAttribute struct {
	UID  DataArrayIdentifier `msgpack:"uid"`
	Name string              `msgpack:"name"`
}

type GetAttributeResponse struct {
	Value AttributeValue `msgpack:"value"`
}

type Exists struct {
	UID DataArrayIdentifier `msgpack:"uid"`
}

type ExistsResponse struct {
	Exists bool `msgpack:"exists"`
}

func (PutAttributes) Protocol() Protocol         { return ProtocolArrayProxy }
func (PutAttributes) MessageType() int32         { return MsgPutAttributes }
func (PutAttributesResponse) Protocol() Protocol { return ProtocolArrayProxy }
func (PutAttributesResponse) MessageType() int32 { return MsgPutAttributesResponse }
func (GetAttribute) Protocol() Protocol          { return ProtocolArrayProxy }
func (GetAttribute) MessageType() int32          { return MsgGetAttribute }
func (GetAttributeResponse) Protocol() Protocol  { return ProtocolArrayProxy }
func (GetAttributeResponse) MessageType() int32  { return MsgGetAttributeResponse }
func (Exists) Protocol() Protocol                { return ProtocolArrayProxy }
func (Exists) MessageType() int32                { return MsgExists }
func (ExistsResponse) Protocol() Protocol        { return ProtocolArrayProxy }
func (ExistsResponse) MessageType() int32        { return MsgExistsResponse }

var messageNames = map[Protocol]map[int32]string{
	ProtocolCore: {
		MsgRequestSession:    "RequestSession",
		MsgOpenSession:       "OpenSession",
		MsgCloseSession:      "CloseSession",
		MsgProtocolException: "ProtocolException",
	},
	ProtocolDataArray: {
		MsgGetDataArrayMetadata:               "GetDataArrayMetadata",
		MsgGetDataArrayMetadataResponse:       "GetDataArrayMetadataResponse",
		MsgGetDataArrays:                      "GetDataArrays",
		MsgGetDataArraysResponse:              "GetDataArraysResponse",
		MsgGetDataSubarrays:                   "GetDataSubarrays",
		MsgGetDataSubarraysResponse:           "GetDataSubarraysResponse",
		MsgPutDataArrays:                      "PutDataArrays",
		MsgPutDataArraysResponse:              "PutDataArraysResponse",
		MsgPutDataSubarrays:                   "PutDataSubarrays",
		MsgPutDataSubarraysResponse:           "PutDataSubarraysResponse",
		MsgPutUninitializedDataArrays:         "PutUninitializedDataArrays",
		MsgPutUninitializedDataArraysResponse: "PutUninitializedDataArraysResponse",
	},
	ProtocolArrayProxy: {
		MsgPutAttributes:         "PutAttributes",
		MsgPutAttributesResponse: "PutAttributesResponse",
		MsgGetAttribute:          "GetAttribute",
		MsgGetAttributeResponse:  "GetAttributeResponse",
		MsgExists:                "Exists",
		MsgExistsResponse:        "ExistsResponse",
	},
}

// MessageName returns the name of a message type, used in logs and metric
// labels.
func MessageName(p Protocol, typ int32) string {
	if n, ok := messageNames[p][typ]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d/%d)", p, typ)
}
