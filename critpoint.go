/*
Package critpoint approximates multivariate scalar functions by least-squares expansions in
Chebyshev, Legendre or monomial tensor bases, refines the degree of the expansion until a target
L2 error is met, and extracts the stationary points of the approximant by homotopy continuation
on its gradient system.

The fitting stage is exposed by package approx and the extraction stage by package critical.
*/
package critpoint
