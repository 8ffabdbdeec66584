package model

import "sort"

// CategoryTree 是一个分类及其递归组装的子树。
type CategoryTree struct {
	Category Category        `json:"category"`
	Children []*CategoryTree `json:"children"`
}

// Forest 是若干棵互不相交的分类树，分类整体不是单根结构。
type Forest []*CategoryTree

// BuildForest 把一次批量读取得到的扁平列表组装成森林。
// 父级 code 不在集合内的节点被当作根（孤儿自成一棵树），兄弟节点按 siblingOrder、code 排序。
func BuildForest(nodes []Category) (Forest, error) {
	roots, _, err := assemble(nodes)
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// BuildSubtree 与 BuildForest 使用同样的分组方式，但只返回以 code 为根的那棵子树。
func BuildSubtree(nodes []Category, code string) (*CategoryTree, error) {
	_, index, err := assemble(nodes)
	if err != nil {
		return nil, err
	}
	tree, ok := index[code]
	if !ok {
		return nil, NotFoundf("category %s not found", code)
	}
	return tree, nil
}

// SubtreeOf 从候选集合中精确筛出 code 本身及其全部后代，按深度优先先序返回。
// 候选集合可以比真实子树更宽（例如同根且深度不小于目标的所有节点）。
func SubtreeOf(nodes []Category, code string) ([]Category, error) {
	children := make(map[string][]Category, len(nodes))
	var target *Category
	for i := range nodes {
		n := nodes[i]
		if n.code == code {
			target = &nodes[i]
			continue
		}
		children[n.ParentCode()] = append(children[n.ParentCode()], n)
	}
	if target == nil {
		return nil, NotFoundf("category %s not found", code)
	}
	for k := range children {
		sortSiblings(children[k])
	}

	visited := make(map[string]bool, len(nodes))
	result := make([]Category, 0, len(nodes))
	stack := []Category{*target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.code] {
			return nil, Validationf("cycle detected at category %s", n.code)
		}
		visited[n.code] = true
		result = append(result, n)

		kids := children[n.code]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return result, nil
}

// Flatten 以深度优先先序展开森林。
func (f Forest) Flatten() []Category {
	var out []Category
	for _, t := range f {
		out = append(out, t.Flatten()...)
	}
	return out
}

// Size 返回森林中的节点总数。
func (f Forest) Size() int {
	return len(f.Flatten())
}

// Find 在森林中查找 code 对应的子树。
func (f Forest) Find(code string) *CategoryTree {
	stack := append([]*CategoryTree(nil), f...)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.Category.code == code {
			return t
		}
		stack = append(stack, t.Children...)
	}
	return nil
}

// Flatten 以深度优先先序展开子树（包含自身）。
func (t *CategoryTree) Flatten() []Category {
	if t == nil {
		return nil
	}
	var out []Category
	stack := []*CategoryTree{t}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n.Category)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// HasChildren 是否存在子分类。
func (t *CategoryTree) HasChildren() bool {
	return t != nil && len(t.Children) > 0
}

func assemble(nodes []Category) (Forest, map[string]*CategoryTree, error) {
	index := make(map[string]*CategoryTree, len(nodes))
	ordered := make([]*CategoryTree, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.code]; dup {
			return nil, nil, Validationf("duplicate category code %s", n.code)
		}
		t := &CategoryTree{Category: n, Children: []*CategoryTree{}}
		index[n.code] = t
		ordered = append(ordered, t)
	}

	roots := Forest{}
	for _, t := range ordered {
		parent, ok := index[t.Category.ParentCode()]
		if !ok || t.Category.IsRoot() {
			roots = append(roots, t)
			continue
		}
		parent.Children = append(parent.Children, t)
	}

	sortTrees(roots)
	for _, t := range ordered {
		sortTrees(t.Children)
	}

	// 入参被假定无环；这里仍然确认每个节点恰好从某个根可达一次。
	visited := make(map[*CategoryTree]bool, len(ordered))
	stack := append([]*CategoryTree(nil), roots...)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[t] {
			return nil, nil, Validationf("cycle detected at category %s", t.Category.code)
		}
		visited[t] = true
		stack = append(stack, t.Children...)
	}
	if len(visited) != len(ordered) {
		return nil, nil, Validationf("%d categories are unreachable from any root", len(ordered)-len(visited))
	}

	return roots, index, nil
}

func sortTrees(ts []*CategoryTree) {
	sort.SliceStable(ts, func(i, j int) bool {
		return siblingLess(ts[i].Category, ts[j].Category)
	})
}

func sortSiblings(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		return siblingLess(cs[i], cs[j])
	})
}

func siblingLess(a, b Category) bool {
	if a.siblingOrder != b.siblingOrder {
		return a.siblingOrder < b.siblingOrder
	}
	return a.code < b.code
}
