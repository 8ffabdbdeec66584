package model

import "strings"

// SegmentWidth 是物化路径中每一层编码的固定位数。
const SegmentWidth = 3

// PathScheme 描述层级关系如何编码在分类的 code 中。
// 命令逻辑只依赖这个接口，不直接拼接或截取字符串。
type PathScheme interface {
	// ValidateSegment 校验单层编码的格式。
	ValidateSegment(segment string) error
	// ValidateCode 校验完整 code 的格式。
	ValidateCode(code string) error
	// Join 把父级 code 与本层编码拼接成子级 code，parentCode 为空表示根。
	Join(parentCode, segment string) string
	// Parent 返回父级 code，根分类返回空串。
	Parent(code string) string
	// Root 返回所在树的根 code。
	Root(code string) string
	// Segment 返回最后一层编码。
	Segment(code string) string
	// Depth 由 code 推导出的深度，根为 0。
	Depth(code string) int
	// Contains 判断 code 是否为 ancestor 本身或其后代。
	Contains(ancestor, code string) bool
	// Replace 把 code 的 oldPrefix 前缀替换为 newPrefix。
	Replace(code, oldPrefix, newPrefix string) (string, error)
}

// MaterializedPath 用定长数字段拼接祖先链，例如 001002003。
type MaterializedPath struct {
	Width int
}

// Path 是当前唯一启用的编码方案。
var Path PathScheme = MaterializedPath{Width: SegmentWidth}

func (p MaterializedPath) ValidateSegment(segment string) error {
	if len(segment) != p.Width || !isDigits(segment) {
		return Validationf("segment %q must be exactly %d digits", segment, p.Width)
	}
	return nil
}

func (p MaterializedPath) ValidateCode(code string) error {
	if code == "" {
		return Validationf("code must not be empty")
	}
	if !isDigits(code) {
		return Validationf("code %q must be numeric", code)
	}
	if len(code)%p.Width != 0 {
		return Validationf("code %q length must be a multiple of %d", code, p.Width)
	}
	return nil
}

func (p MaterializedPath) Join(parentCode, segment string) string {
	return parentCode + segment
}

func (p MaterializedPath) Parent(code string) string {
	if len(code) <= p.Width {
		return ""
	}
	return code[:len(code)-p.Width]
}

func (p MaterializedPath) Root(code string) string {
	if len(code) <= p.Width {
		return code
	}
	return code[:p.Width]
}

func (p MaterializedPath) Segment(code string) string {
	if len(code) <= p.Width {
		return code
	}
	return code[len(code)-p.Width:]
}

func (p MaterializedPath) Depth(code string) int {
	return len(code)/p.Width - 1
}

func (p MaterializedPath) Contains(ancestor, code string) bool {
	return ancestor != "" && strings.HasPrefix(code, ancestor)
}

func (p MaterializedPath) Replace(code, oldPrefix, newPrefix string) (string, error) {
	if !strings.HasPrefix(code, oldPrefix) {
		return "", Validationf("%q is not a prefix of code %q", oldPrefix, code)
	}
	if err := p.ValidateCode(newPrefix); err != nil {
		return "", err
	}
	return newPrefix + strings.TrimPrefix(code, oldPrefix), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
