// Package etp implements the subset of the Energistics Transfer Protocol
// used to reach an array container remotely: the core session handshake,
// the DataArray protocol and a small extension protocol for attributes and
// existence checks.
//
// Every websocket frame is binary and holds two msgpack values: a Header
// followed by the message body.
package etp

import (
	"errors"
	"fmt"
)

// Protocol identifies a sub-protocol.
type Protocol int32

const (
	ProtocolCore      Protocol = 0
	ProtocolDataArray Protocol = 9
	// ProtocolArrayProxy carries attribute and existence messages the
	// DataArray protocol has no room for.
	ProtocolArrayProxy Protocol = 2009
)

// Core protocol message types.
const (
	MsgRequestSession    int32 = 1
	MsgOpenSession       int32 = 2
	MsgCloseSession      int32 = 5
	MsgProtocolException int32 = 1000
)

// DataArray protocol message types.
const (
	MsgGetDataArraysResponse              int32 = 1
	MsgGetDataArrays                      int32 = 2
	MsgGetDataSubarrays                   int32 = 3
	MsgPutDataArrays                      int32 = 4
	MsgPutDataSubarrays                   int32 = 5
	MsgGetDataArrayMetadata               int32 = 6
	MsgGetDataArrayMetadataResponse       int32 = 7
	MsgGetDataSubarraysResponse           int32 = 8
	MsgPutUninitializedDataArrays         int32 = 9
	MsgPutDataArraysResponse              int32 = 10
	MsgPutDataSubarraysResponse           int32 = 11
	MsgPutUninitializedDataArraysResponse int32 = 12
)

// Array proxy protocol message types.
const (
	MsgPutAttributes         int32 = 1
	MsgPutAttributesResponse int32 = 2
	MsgGetAttribute          int32 = 3
	MsgGetAttributeResponse  int32 = 4
	MsgExists                int32 = 5
	MsgExistsResponse        int32 = 6
)

// Header flags.
const (
	FlagFinalPart int32 = 0x02
)

// Header precedes every message body.
type Header struct {
	Protocol      Protocol `msgpack:"protocol"`
	MessageType   int32    `msgpack:"messageType"`
	CorrelationID int64    `msgpack:"correlationId"`
	MessageID     int64    `msgpack:"messageId"`
	MessageFlags  int32    `msgpack:"messageFlags"`
}

func (h Header) String() string {
	return fmt.Sprintf("%d/%d#%d", h.Protocol, h.MessageType, h.MessageID)
}

// Error codes carried by ProtocolException. Codes below 1000 follow the
// protocol's standard codes; the others are specific to array proxies.
const (
	CodeInvalidArgument int32 = 5
	CodeNotSupported    int32 = 7
	CodeInvalidState    int32 = 8
	CodeNotFound        int32 = 11
	CodeInvalidMessage  int32 = 19

	CodeAlreadyExists   int32 = 2009001
	CodeOutOfBounds     int32 = 2009002
	CodeTypeMismatch    int32 = 2009003
	CodeUnsupportedType int32 = 2009004
	CodeBufferSize      int32 = 2009005
	CodeInternal        int32 = 2009099
)

// ErrorInfo is the error reported by a ProtocolException. It implements
// error so that backends and callers can pass it around directly.
type ErrorInfo struct {
	Code    int32  `msgpack:"code"`
	Message string `msgpack:"message"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("etp error %d: %s", e.Code, e.Message)
}

// Errorf builds an ErrorInfo.
func Errorf(code int32, format string, args ...any) *ErrorInfo {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of an ErrorInfo in err's chain, or CodeInternal.
func CodeOf(err error) int32 {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.Code
	}
	return CodeInternal
}

var (
	// ErrClosed is returned for calls on a client whose connection is gone.
	ErrClosed = errors.New("etp: connection closed")
	// ErrUnexpectedMessage is returned when a response has the wrong type.
	ErrUnexpectedMessage = errors.New("etp: unexpected message")
)
