package model

// Option 下拉选项（编码 + 显示名）
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Catalog 院系、角色、申请类型等固定字典，启动时构建后只读
type Catalog struct {
	departments []Option
	roles       []Option
	docTypes    []Option
	deptIndex   map[string]string
}

// DepartmentOther 其他部门编码
const DepartmentOther = "OTHER"

// NewCatalog 构建字典
func NewCatalog() *Catalog {
	departments := []Option{
		{"UG_BA_ENG", "B.A. English"},
		{"UG_BCOM", "B.Com"},
		{"UG_BSC_MATH", "B.Sc. Mathematics"},
		{"UG_BSC_CS", "B.Sc. Computer Science"},
		{"UG_BCA", "BCA"},
		{"UG_BBA", "BBA"},
		{"UG_BVOC_RSCM", "B.Voc Retail & Supply Chain Management"},
		{"UG_BVOC_SAD", "B.Voc Software & App Development"},
		{"UG_BVOC_DMFM", "B.Voc Digital Media & Film Making"},
		{"PG_MA_ENG", "M.A. English"},
		{"PG_MCOM", "M.Com"},
		{"PG_MSC_MATH", "M.Sc. Mathematics"},
		{"PG_MSC_CS", "M.Sc. Computer Science"},
		{"PG_MCA", "MCA"},
		{"PG_MBA", "MBA"},
		{DepartmentOther, "Other"},
	}

	c := &Catalog{
		departments: departments,
		deptIndex:   make(map[string]string, len(departments)),
	}
	for _, d := range departments {
		c.deptIndex[d.Code] = d.Label
	}
	for _, r := range AllRoles {
		c.roles = append(c.roles, Option{Code: string(r), Label: r.Label()})
	}
	for _, t := range AllDocTypes {
		c.docTypes = append(c.docTypes, Option{Code: string(t), Label: t.Label()})
	}
	return c
}

// Departments 院系列表（副本）
func (c *Catalog) Departments() []Option {
	return append([]Option(nil), c.departments...)
}

// Roles 角色列表（副本）
func (c *Catalog) Roles() []Option {
	return append([]Option(nil), c.roles...)
}

// DocTypes 申请类型列表（副本）
func (c *Catalog) DocTypes() []Option {
	return append([]Option(nil), c.docTypes...)
}

// IsDepartment 是否为合法院系编码
func (c *Catalog) IsDepartment(code string) bool {
	_, ok := c.deptIndex[code]
	return ok
}

// DepartmentLabel 院系显示名，未知编码原样返回
func (c *Catalog) DepartmentLabel(code string) string {
	if label, ok := c.deptIndex[code]; ok {
		return label
	}
	return code
}
