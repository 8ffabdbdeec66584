package model

// 兄弟顺序的重新编号都是对同一父级下整组兄弟的纯函数，
// 返回值只包含顺序发生变化的成员，由调用方一次性批量保存。

// NextOrder 返回追加到组末尾时应使用的顺序值。
func NextOrder(siblings []Category) int {
	next := 0
	for _, s := range siblings {
		if s.siblingOrder >= next {
			next = s.siblingOrder + 1
		}
	}
	return next
}

// CloseGap 在 removed 离开该组后，把排在它之后的兄弟依次前移一位。
func CloseGap(siblings []Category, removed Category) ([]Category, error) {
	var changed []Category
	for _, s := range siblings {
		if s.code == removed.code || s.siblingOrder <= removed.siblingOrder {
			continue
		}
		shifted, err := s.WithOrder(s.siblingOrder - 1)
		if err != nil {
			return nil, err
		}
		changed = append(changed, shifted)
	}
	return changed, nil
}

// Reposition 把 code 移动到组内第 to 位（超出末尾时放到末尾），
// 其余兄弟依次让位，整组顺序被规整为 0..n-1。
func Reposition(siblings []Category, code string, to int) ([]Category, error) {
	if to < 0 {
		return nil, Validationf("sibling order must not be negative")
	}
	group := append([]Category(nil), siblings...)
	sortSiblings(group)

	from := -1
	for i, s := range group {
		if s.code == code {
			from = i
			break
		}
	}
	if from < 0 {
		return nil, NotFoundf("category %s is not in the sibling group", code)
	}
	if to > len(group)-1 {
		to = len(group) - 1
	}

	moved := group[from]
	group = append(group[:from], group[from+1:]...)
	group = append(group[:to], append([]Category{moved}, group[to:]...)...)

	var changed []Category
	for i, s := range group {
		if s.siblingOrder == i {
			continue
		}
		renumbered, err := s.WithOrder(i)
		if err != nil {
			return nil, err
		}
		changed = append(changed, renumbered)
	}
	return changed, nil
}
