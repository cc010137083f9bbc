package models

// FailureMessage is shown for every failed upload, whatever the cause.
const FailureMessage = "Failed to upload menu. Please make sure the backend is running."

// DishInfo is one menu item as returned by the analysis backend.
// Only Name is guaranteed; every other field may be absent.
type DishInfo struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Price           string   `json:"price,omitempty"` // pre-formatted, e.g. "$12.50"
	Ingredients     []string `json:"ingredients,omitempty"`
	Allergens       []string `json:"allergens,omitempty"`
	DietaryInfo     []string `json:"dietaryInfo,omitempty"` // e.g. "vegetarian", "gluten-free"
	NutritionalInfo string   `json:"nutritionalInfo,omitempty"`
}

// AnalysisResult is the JSON body of POST /api/menu/upload.
type AnalysisResult struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Dishes  []DishInfo `json:"dishes,omitempty"`
}

// FailureResult returns the fixed result used in place of any upload error.
func FailureResult() *AnalysisResult {
	return &AnalysisResult{
		Success: false,
		Message: FailureMessage,
	}
}

// HasDishes reports whether the "Dishes Found" block should render.
func (r *AnalysisResult) HasDishes() bool {
	return r != nil && len(r.Dishes) > 0
}
