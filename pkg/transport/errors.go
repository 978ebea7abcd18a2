/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"

	"d7y.io/curler/pkg/fetcherrors"
)

var (
	errTooManyRedirects = errors.New("maximum redirects followed")
	errAborted          = errors.New("transfer aborted by write callback")
)

// Classify maps a net/http error onto a transport code.
func Classify(err error) fetcherrors.Code {
	if err == nil {
		return fetcherrors.CodeNone
	}

	var (
		dnsErr      *net.DNSError
		opErr       *net.OpError
		netErr      net.Error
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
	)

	switch {
	case errors.Is(err, errAborted):
		return fetcherrors.CodeAbortedByCallback
	case errors.Is(err, errTooManyRedirects):
		return fetcherrors.CodeTooManyRedirects
	case errors.Is(err, context.DeadlineExceeded):
		return fetcherrors.CodeOperationTimedout
	case errors.Is(err, context.Canceled):
		// Cancelled by the caller, not by the sink.
		return fetcherrors.CodeUnknown
	case errors.As(err, &dnsErr):
		return fetcherrors.CodeCouldntResolveHost
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr),
		errors.As(err, &invalidCert), errors.As(err, &verifyErr):
		return fetcherrors.CodePeerFailedVerification
	case errors.As(err, &recordErr):
		return fetcherrors.CodeSSLConnectError
	case errors.As(err, &netErr) && netErr.Timeout():
		return fetcherrors.CodeOperationTimedout
	case errors.As(err, &opErr):
		switch opErr.Op {
		case "dial":
			return fetcherrors.CodeCouldntConnect
		case "write":
			return fetcherrors.CodeSendError
		default:
			return fetcherrors.CodeRecvError
		}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fetcherrors.CodePartialFile
	case errors.Is(err, io.EOF):
		return fetcherrors.CodeGotNothing
	default:
		return fetcherrors.CodeUnknown
	}
}

func newTransportRecord(err error) *fetcherrors.Record {
	return fetcherrors.NewTransport(Classify(err), err.Error())
}
