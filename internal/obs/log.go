package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// The service logs one JSON object per line on stdout. Request logging, audit
// events, and authorization decisions all go through the same logger so the
// stream stays strictly ordered; consumers correlate lines by request_id.

var (
	initLogger sync.Once
	shared     *log.Logger
)

// Logger returns the process-wide line logger. Tests may redirect it with
// SetOutput as long as they restore the previous writer.
func Logger() *log.Logger {
	initLogger.Do(func() {
		shared = log.New(os.Stdout, "", 0)
	})
	return shared
}

// LogRequest serializes entry as a single JSON line. Entries that cannot be
// marshaled are replaced with a fixed error line rather than dropped, so the
// stream never silently loses a request.
func LogRequest(entry map[string]any) {
	line, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"request log entry not serializable"}`)
		return
	}
	Logger().Println(string(line))
}
