package errors

import (
	"fmt"
	"sort"
	"sync"
)

var registry = struct {
	sync.RWMutex
	codes map[int]*Errno
}{codes: make(map[int]*Errno)}

// Register 登记错误码并返回 e，重复的错误码会 panic。
// 所有错误码都在包初始化时登记，冲突在启动时即可发现。
func Register(e *Errno) *Errno {
	registry.Lock()
	defer registry.Unlock()

	if existing, ok := registry.codes[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry.codes[e.Code] = e
	return e
}

// Lookup 按错误码查找已登记的 Errno。
func Lookup(code int) (*Errno, bool) {
	registry.RLock()
	defer registry.RUnlock()
	e, ok := registry.codes[code]
	return e, ok
}

// Codes 返回某个服务下已登记的错误码，按升序排列。
func Codes(service int) []int {
	registry.RLock()
	defer registry.RUnlock()

	var codes []int
	for code := range registry.codes {
		if code/serviceUnit == service {
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)
	return codes
}
