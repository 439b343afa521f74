package domain

// CascadeJob removes one deactivated employee from one customer.
// Replaying a job is safe.
type CascadeJob struct {
	CustomerID   string `json:"customerId"`
	CompanyID    string `json:"companyId"`
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	ActorID      string `json:"actorId"`
	ActorName    string `json:"actorName"`
	Attempt      int    `json:"attempt"`
}
