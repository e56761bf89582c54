package logging

import "logkit/internal/servicectx"

// sinkFilter decides whether a stamped record belongs to a sink. Filters are
// small named values holding their captured keys, never closures, so the
// captured state is visible and cannot alias a loop variable.
type sinkFilter interface {
	accepts(e entry) bool
}

// acceptAll admits every record that clears the sink's level gate.
type acceptAll struct{}

func (acceptAll) accepts(entry) bool { return true }

// serviceFilter routes records stamped with a specific service. The info
// tier additionally excludes the error tier and any marked streams that own
// their own sink.
type serviceFilter struct {
	service          servicectx.Service
	excludeErrorTier bool
	excludeMarks     []string
}

func (f serviceFilter) accepts(e entry) bool {
	if e.service != f.service {
		return false
	}
	if f.excludeErrorTier && isErrorTier(e.level) {
		return false
	}
	for _, key := range f.excludeMarks {
		if e.marked(key) {
			return false
		}
	}
	return true
}

// markFilter admits only records explicitly marked with its key; an absent
// mark excludes the record even when level and service would match.
type markFilter struct {
	key string
}

func (f markFilter) accepts(e entry) bool {
	return e.marked(f.key)
}
