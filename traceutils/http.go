package traceutils

import (
	"net/http"
	"net/http/httputil"

	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
)

// DumpRequest dumps an outgoing request for debug logging.
func DumpRequest(req *http.Request) string {
	dump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		log.Error("fail to dump request", zap.Error(err))
	}

	return string(dump)
}

// DumpResponse dumps the head of a response for debug logging.
func DumpResponse(resp *http.Response) string {
	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		log.Error("fail to dump response", zap.Error(err))
	}

	return string(dump)
}
