package dto

import "time"

// CompanyRegisterRequest payload.
type CompanyRegisterRequest struct {
	CompanyName   string `json:"companyName"`
	BusinessEmail string `json:"businessEmail"`
	ManagerName   string `json:"managerName"`
	Password      string `json:"password"`
	Industry      string `json:"industry"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
}

// CompanyDecisionRequest approves or rejects a company.
type CompanyDecisionRequest struct {
	Status string `json:"status"`
}

// CompanyResponse omits the password hash.
type CompanyResponse struct {
	ID            string    `json:"id"`
	CompanyName   string    `json:"companyName"`
	BusinessEmail string    `json:"businessEmail"`
	ManagerName   string    `json:"managerName"`
	Industry      string    `json:"industry"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Approved      bool      `json:"approved"`
	EmployeeCount *int      `json:"employeeCount,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StatsResponse admin dashboard counters.
type StatsResponse struct {
	TotalCompanies    int `json:"totalCompanies"`
	ApprovedCompanies int `json:"approvedCompanies"`
	TotalEmployees    int `json:"totalEmployees"`
}
