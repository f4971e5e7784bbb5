package stats

import "reflect"
import "sync/atomic"
import "strconv"
import "strings"
import "unsafe"

/// Stats enables counter collection when true.
const Stats = true

/// Counter_t is a statistical counter.
type Counter_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

/// Read returns the current value of the counter.
func (c *Counter_t) Read() int64 {
	if !Stats {
		return 0
	}
	return atomic.LoadInt64((*int64)(unsafe.Pointer(c)))
}

/// Stats2String converts a struct of counters to a printable string.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
