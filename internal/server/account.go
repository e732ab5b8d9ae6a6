package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	"github.com/roomvision/roomvision/internal/providers/pdf"
	"github.com/roomvision/roomvision/pkg/db/pagination"
)

func (s *Server) Me(c *gin.Context) {
	user, err := s.accountSvc.GetUser(c.Request.Context(), s.currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "credits": user.Credits})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accountSvc.ListTransactions(c.Request.Context(), accountdomain.ListTransactionsRequest{
		Pagination: page,
		UserID:     s.currentUserID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetTransactionReceipt renders a purchase transaction as a PDF receipt.
func (s *Server) GetTransactionReceipt(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_transaction_id", "invalid transaction id"))
		return
	}

	ctx := c.Request.Context()
	userID := s.currentUserID(c)

	txn, err := s.accountSvc.GetTransaction(ctx, userID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if txn.Type != accountdomain.TransactionTypePurchase {
		AbortWithError(c, ErrNotFound)
		return
	}

	user, err := s.accountSvc.GetUser(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.pdfProvider.GenerateReceipt(ctx, pdf.ReceiptData{
		ReceiptNumber: txn.ID.String(),
		DatePaid:      txn.CreatedAt.Format("Jan 2, 2006"),
		BilledToName:  user.Name,
		BilledToEmail: user.Email,
		Description:   txn.Description,
		Credits:       txn.Credits,
		Amount:        formatAmount(txn.AmountCents, txn.Currency),
		Currency:      txn.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", txn.ID.String()))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, strings.ToUpper(currency))
}
