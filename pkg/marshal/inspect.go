package marshal

import (
	"fmt"
	"sort"
)

// Record 描述数据中的一条记录。
type Record struct {
	// Offset 为记录首字节（类型码）的偏移。
	Offset int
	// Size 为记录占用的字节数，包含全部子记录。
	Size int
	Tag  Tag
	// Ref 表示类型码带有引用标志位。
	Ref   bool
	Depth int
	// RefIndex 为记录登记到引用表的下标；对回引用记录为其指向的下标；否则为 -1。
	RefIndex int
}

func (r Record) String() string {
	flag := ' '
	if r.Ref {
		flag = '&'
	}
	s := fmt.Sprintf("%08x %*s%c%-14s size=%d", r.Offset, (r.Depth-1)*2, "", flag, r.Tag, r.Size)
	if r.RefIndex >= 0 {
		s += fmt.Sprintf(" ref=%d", r.RefIndex)
	}
	return s
}

// Inspect 解码 data 并按偏移顺序列出每条记录。
// 解码失败时同时返回已经遍历到的记录（含出错的记录）以及错误。
func Inspect(data []byte, opts ...Option) ([]Record, error) {
	var records []Record
	opts = append(opts, WithTrace(func(r Record) {
		records = append(records, r)
	}))
	_, err := Loads(data, opts...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Offset < records[j].Offset
	})
	return records, err
}
