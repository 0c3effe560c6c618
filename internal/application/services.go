package application

// Services bundles the application services handed to the outer adapters.
type Services struct {
	Access        *AccessService
	Products      *ProductService
	Requests      *RequestService
	Lifecycle     *LifecycleService
	Interventions *InterventionService
}
