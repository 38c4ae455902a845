package service

import (
	"context"
	"strings"

	"pearstock/backend/internal/domain"
	"pearstock/backend/internal/xid"
)

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}

	req = normalizeCustomerRequest(req)
	if err := validateStruct(req); err != nil {
		return domain.Customer{}, err
	}

	created, err := s.repo.CreateCustomer(ctx, customerFromRequest(xid.New("cust"), req))
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) (domain.CustomerListResponse, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.CustomerListResponse{}, err
	}
	return domain.CustomerListResponse{Customers: customers}, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Customer{}, err
	}

	fields := normalizeCustomerRequest(domain.CustomerCreateRequest(req))
	if err := validateStruct(fields); err != nil {
		return domain.Customer{}, err
	}

	updated, err := s.repo.UpdateCustomer(ctx, customerFromRequest(id, fields))
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

// DeleteCustomer removes a customer without sales. Customers with sales
// are kept so sale history stays linked.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := requireActor(ctx); err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, id)
}

func normalizeCustomerRequest(req domain.CustomerCreateRequest) domain.CustomerCreateRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Document = strings.TrimSpace(req.Document)
	req.Phone = strings.TrimSpace(req.Phone)
	req.City = strings.TrimSpace(req.City)
	req.Address = strings.TrimSpace(req.Address)
	req.Notes = strings.TrimSpace(req.Notes)
	return req
}

func customerFromRequest(id string, req domain.CustomerCreateRequest) domain.Customer {
	return domain.Customer{
		ID:       id,
		Name:     req.Name,
		Document: req.Document,
		Phone:    req.Phone,
		City:     req.City,
		Address:  req.Address,
		Notes:    req.Notes,
	}
}
