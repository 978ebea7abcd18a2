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

package fetcherrors

// Code is a transport failure code. Values follow libcurl's CURLcode
// numbering so logs stay comparable with curl output.
type Code int

const (
	CodeUnknown                Code = -1
	CodeNone                   Code = 0
	CodeUnsupportedProtocol    Code = 1
	CodeURLMalformat           Code = 3
	CodeCouldntResolveProxy    Code = 5
	CodeCouldntResolveHost     Code = 6
	CodeCouldntConnect         Code = 7
	CodePartialFile            Code = 18
	CodeWriteError             Code = 23
	CodeOperationTimedout      Code = 28
	CodeSSLConnectError        Code = 35
	CodeAbortedByCallback      Code = 42
	CodeTooManyRedirects       Code = 47
	CodeGotNothing             Code = 52
	CodeSendError              Code = 55
	CodeRecvError              Code = 56
	CodePeerFailedVerification Code = 60
	CodeLoginDenied            Code = 67
)

var codeNames = map[Code]string{
	CodeUnknown:                "CURLE_UNKNOWN",
	CodeNone:                   "CURLE_OK",
	CodeUnsupportedProtocol:    "CURLE_UNSUPPORTED_PROTOCOL",
	CodeURLMalformat:           "CURLE_URL_MALFORMAT",
	CodeCouldntResolveProxy:    "CURLE_COULDNT_RESOLVE_PROXY",
	CodeCouldntResolveHost:     "CURLE_COULDNT_RESOLVE_HOST",
	CodeCouldntConnect:         "CURLE_COULDNT_CONNECT",
	CodePartialFile:            "CURLE_PARTIAL_FILE",
	CodeWriteError:             "CURLE_WRITE_ERROR",
	CodeOperationTimedout:      "CURLE_OPERATION_TIMEDOUT",
	CodeSSLConnectError:        "CURLE_SSL_CONNECT_ERROR",
	CodeAbortedByCallback:      "CURLE_ABORTED_BY_CALLBACK",
	CodeTooManyRedirects:       "CURLE_TOO_MANY_REDIRECTS",
	CodeGotNothing:             "CURLE_GOT_NOTHING",
	CodeSendError:              "CURLE_SEND_ERROR",
	CodeRecvError:              "CURLE_RECV_ERROR",
	CodePeerFailedVerification: "CURLE_PEER_FAILED_VERIFICATION",
	CodeLoginDenied:            "CURLE_LOGIN_DENIED",
}

// Name returns the symbolic name of c. Codes outside the table map to the
// unknown name.
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return codeNames[CodeUnknown]
}

func (c Code) String() string {
	return c.Name()
}
