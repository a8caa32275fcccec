// internal/handlers/product.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apporbit/apporbit-backend/internal/i18n"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

const maxUploadFiles = 5

type ProductHandler struct {
	productService *services.ProductService
	storageService *services.StorageService
}

func NewProductHandler(productService *services.ProductService, storageService *services.StorageService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		storageService: storageService,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, products)
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, product)
}

// GET /products/featured
func (h *ProductHandler) GetFeatured(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	products, err := h.productService.Featured(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, products)
}

// GET /products/trending
func (h *ProductHandler) GetTrending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	products, err := h.productService.Trending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, products)
}

// GET /test-products/accepted
func (h *ProductHandler) GetAccepted(c *gin.Context) {
	params := services.AcceptedProductParams{
		PaginationParams: utils.GetPaginationParams(c),
		Tag:              c.Query("tag"),
	}

	products, total, err := h.productService.ListAccepted(c.Request.Context(), params)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params.PaginationParams))
}

// POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}

	var req services.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), email, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, product)
}

// POST /add-product
func (h *ProductHandler) AddProduct(c *gin.Context) {
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}

	var req services.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), email, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.CreatedResponse(c, gin.H{"inserted_id": product.ID})
}

// PATCH /products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	var req services.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}

// DELETE /products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	result, err := h.productService.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}

// PATCH /products/vote/:id
func (h *ProductHandler) Vote(c *gin.Context) {
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	product, err := h.productService.Vote(c.Request.Context(), id, email)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"matched_count":  1,
		"modified_count": 1,
		"votes":          product.Votes,
	})
}

// PATCH /products/feature/:id
func (h *ProductHandler) Feature(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	result, err := h.productService.Feature(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}

// PATCH /products/accept/:id
func (h *ProductHandler) Accept(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	result, err := h.productService.Accept(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}

// PATCH /products/reject/:id
func (h *ProductHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	result, err := h.productService.Reject(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err, "product")
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /products/upload-images
func (h *ProductHandler) UploadImages(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	email, ok := currentIdentityEmail(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "form"), err.Error())
		return
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "images"), nil)
		return
	}
	if len(headers) > maxUploadFiles {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileTooLarge), gin.H{"max_files": maxUploadFiles})
		return
	}

	results := make([]*services.UploadResult, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			respondError(c, err, "product")
			return
		}
		result, err := h.storageService.UploadProductImage(c.Request.Context(), email, file, header)
		file.Close()
		if err != nil {
			respondError(c, err, "product")
			return
		}
		results = append(results, result)
	}

	utils.CreatedResponse(c, results)
}
